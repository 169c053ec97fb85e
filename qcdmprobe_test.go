package portprobe

import "testing"

func TestBuildVersionInfoRequest(t *testing.T) {
	req := buildVersionInfoRequest()
	if len(req) != 1+versionInfoLen {
		t.Fatalf("expected %d-byte request, got %d", 1+versionInfoLen, len(req))
	}
	if req[0] != qcdmFrameMarker {
		t.Error("expected request to start with the QCDM frame marker")
	}
}

func TestQCDMParserFeedsFullFrame(t *testing.T) {
	p := &QCDMParser{}
	req := buildVersionInfoRequest()
	resp, done, err := p.Feed(req[:5])
	if done || err != nil {
		t.Fatal("expected no decision on a partial frame")
	}
	resp, done, err = p.Feed(req[5:])
	if err != nil || !done {
		t.Fatal("expected a complete frame to be recognized")
	}
	if !validateVersionInfo(resp) {
		t.Error("expected the fed-back frame to validate")
	}
}

func TestQCDMParserRejectsMissingMarker(t *testing.T) {
	p := &QCDMParser{}
	_, _, err := p.Feed([]byte{0x00, 0x01, 0x02})
	if KindOf(err) != ParseFailed {
		t.Fatal("expected a missing frame marker to be ParseFailed")
	}
}

func TestValidateVersionInfo(t *testing.T) {
	good := buildVersionInfoRequest()
	if !validateVersionInfo(good) {
		t.Error("expected a well-formed frame to validate")
	}
	if validateVersionInfo(good[:len(good)-1]) {
		t.Error("expected a short frame to not validate")
	}
	bad := append([]byte{0x00}, good[1:]...)
	if validateVersionInfo(bad) {
		t.Error("expected a frame with the wrong marker to not validate")
	}
}
