package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("numpy.linalg"))
	b := Sum([]byte("numpy.linalg"))
	if a != b {
		t.Fatalf("checksum not stable: %q vs %q", a, b)
	}
	if a == Sum([]byte("numpy.fft")) {
		t.Error("different inputs produced the same checksum")
	}
	if a == "" {
		t.Error("empty checksum")
	}
}
