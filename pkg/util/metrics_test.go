package util

import (
	"testing"
	"time"
)

func TestTimeOperationMicroseconds(t *testing.T) {
	called := false
	us := TimeOperationMicroseconds(func() {
		called = true
		time.Sleep(2 * time.Millisecond)
	})
	if !called {
		t.Fatal("operation not called")
	}
	if us < 2000 {
		t.Errorf("TimeOperationMicroseconds() = %d, want >= 2000", us)
	}
}

func TestNewWriteAPIWithoutHost(t *testing.T) {
	writeAPI, closeFn := NewWriteAPI("", "", "org", "bucket")
	defer closeFn()
	mock, ok := writeAPI.(*MockWriteAPI)
	if !ok {
		t.Fatalf("NewWriteAPI() = %T, want *MockWriteAPI", writeAPI)
	}
	mock.WriteRecord("m v=1")
	if got := mock.Records(); len(got) != 1 || got[0] != "m v=1" {
		t.Errorf("Records() = %v", got)
	}
}
