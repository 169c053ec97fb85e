package portprobe

import (
	"context"
	"os"
	"testing"
)

func withDevicePath(t *testing.T, path func(name string) string) {
	t.Helper()
	orig := devicePath
	devicePath = path
	t.Cleanup(func() { devicePath = orig })
}

func TestSerialPortOpenNoDeviceIsRetryable(t *testing.T) {
	withDevicePath(t, func(name string) string { return "/nonexistent/" + name })

	port := NewSerialPort("ttyUSB0", 0, false, false)
	err := port.Open(context.Background())
	if err == nil {
		t.Fatal("expected an error opening a nonexistent device")
	}
	if KindOf(err) != OpenFailedNoDevice {
		t.Errorf("expected OpenFailedNoDevice, got %v", KindOf(err))
	}
}

func TestSerialPortOpenNonTTYFails(t *testing.T) {
	f, err := os.CreateTemp("", "portprobe-serial-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.Close()

	withDevicePath(t, func(name string) string { return f.Name() })

	port := NewSerialPort("plainfile", 0, false, false)
	err = port.Open(context.Background())
	if err == nil {
		t.Fatal("expected an error putting a plain file into raw tty mode")
	}
	if KindOf(err) != OpenFailed {
		t.Errorf("expected OpenFailed, got %v", KindOf(err))
	}
	if port.IsOpen() {
		t.Error("expected port to not be open after a failed makeRaw")
	}
}

func TestSerialPortCloseIdempotent(t *testing.T) {
	port := NewSerialPort("ttyUSB0", 0, false, false)
	if err := port.Close(); err != nil {
		t.Fatal("closing a never-opened port should be a no-op:", err)
	}
	if err := port.Close(); err != nil {
		t.Fatal("second close should also be a no-op:", err)
	}
}
