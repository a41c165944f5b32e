package camera

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/pion/avcapture/pkg/driver"
)

func TestDiscover(t *testing.T) {
	const (
		shortName  = "video0"
		shortName2 = "video1"
		longName   = "long-device-name:0:1:2:3"
	)

	dir := t.TempDir()

	byPathDir := filepath.Join(dir, "v4l", "by-path")
	if err := os.MkdirAll(byPathDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, shortName), []byte{}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, shortName2), []byte{}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(
		filepath.Join(dir, shortName),
		filepath.Join(byPathDir, longName),
	); err != nil {
		t.Fatal(err)
	}

	var infos []driver.Info
	register := func(a driver.Adapter, info driver.Info) error {
		infos = append(infos, info)
		return nil
	}

	discovered := make(map[string]struct{})
	discover(register, discovered, filepath.Join(byPathDir, "*"))
	discover(register, discovered, filepath.Join(dir, "video*"))

	if len(infos) != 2 {
		t.Fatalf("Expected 2 driver, got %d drivers", len(infos))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Label < infos[j].Label })

	expected := longName + LabelSeparator + shortName
	if label := infos[0].Label; label != expected {
		t.Errorf("Expected label: %s, got: %s", expected, label)
	}

	expectedNoLink := shortName2 + LabelSeparator + shortName2
	if label := infos[1].Label; label != expectedNoLink {
		t.Errorf("Expected label: %s, got: %s", expectedNoLink, label)
	}
	if infos[0].DeviceType != driver.Camera {
		t.Errorf("Expected device type %s, got %s", driver.Camera, infos[0].DeviceType)
	}
}

func TestFourcc(t *testing.T) {
	// V4L2_PIX_FMT_YUYV
	if got := fourcc('Y', 'U', 'Y', 'V'); got != 0x56595559 {
		t.Errorf("Expected 0x56595559, got %#x", uint32(got))
	}
}

func TestNotRunning(t *testing.T) {
	c := newCamera("/dev/null")

	if st := c.IngestStatus(); st.Running || st.HasAvailableInputFrame() {
		t.Errorf("Expected an idle status, got %+v", st)
	}
	var x driver.Transfer
	if err := c.Transfer(&x); err != errNotStarted {
		t.Errorf("Expected %v, got %v", errNotStarted, err)
	}
	if c.WaitForVerticalInterrupt(time.Millisecond) {
		t.Error("Expected no vertical interrupt from a closed camera")
	}
	if err := c.StopIngest(); err != nil {
		t.Errorf("Expected stopping an idle camera to succeed, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Expected closing an unopened camera to succeed, got %v", err)
	}
}
