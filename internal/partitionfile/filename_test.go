package partitionfile

import "testing"

func TestNameFormatAndParseRoundTrip(t *testing.T) {
	n := Name{SystemMillis: 100, Version: 5, MergeCount: 0}
	filename := n.Format("tsfile")
	if filename != "100-5-0.tsfile" {
		t.Fatalf("Format() = %q, want %q", filename, "100-5-0.tsfile")
	}

	got, ext, err := ParseName(filename)
	if err != nil {
		t.Fatalf("ParseName() error = %v", err)
	}
	if got != n {
		t.Errorf("ParseName() = %+v, want %+v", got, n)
	}
	if ext != "tsfile" {
		t.Errorf("ext = %q, want tsfile", ext)
	}
}

func TestParseNameRejectsMalformed(t *testing.T) {
	cases := []string{"no-extension", "100-5.tsfile", "a-5-0.tsfile", "100-a-0.tsfile"}
	for _, c := range cases {
		if _, _, err := ParseName(c); err == nil {
			t.Errorf("ParseName(%q) expected error, got nil", c)
		}
	}
}

func TestNameLessOrdersByVersionThenMergeCount(t *testing.T) {
	a := Name{SystemMillis: 500, Version: 1, MergeCount: 2}
	b := Name{SystemMillis: 100, Version: 1, MergeCount: 3}
	c := Name{SystemMillis: 100, Version: 2, MergeCount: 0}

	if !a.Less(b) {
		t.Error("a should sort before b: same version, lower mergeCount")
	}
	if b.Less(a) {
		t.Error("b should not sort before a")
	}
	if !b.Less(c) {
		t.Error("b should sort before c: lower version wins regardless of systemMillis")
	}
}

func TestParsePartitionID(t *testing.T) {
	if id, ok := ParsePartitionID("42"); !ok || id != 42 {
		t.Errorf("ParsePartitionID(42) = (%d, %v), want (42, true)", id, ok)
	}
	if _, ok := ParsePartitionID("not-a-number"); ok {
		t.Error("ParsePartitionID should reject non-numeric directory names, not panic")
	}
	if _, ok := ParsePartitionID(""); ok {
		t.Error("ParsePartitionID should reject empty directory names")
	}
}
