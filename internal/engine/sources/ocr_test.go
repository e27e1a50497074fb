package sources

import (
	"context"
	"strings"
	"testing"
)

func TestTesseractOCR_MissingBinary(t *testing.T) {
	ocr := TesseractOCR{Bin: "tesseract-missing-for-test"}
	_, err := ocr.Recognize(context.Background(), []byte("png"))
	if err == nil || !strings.Contains(err.Error(), "not installed") {
		t.Errorf("err = %v, want not installed", err)
	}
}

func TestRecognizeDocument_StopsOnCancel(t *testing.T) {
	useDoc(t, &fakeDoc{pages: []string{"", ""}, scans: []string{"a", "b"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ocr := &echoOCR{}
	if _, _, err := recognizeDocument(ctx, fakePDF, ocr); err == nil {
		t.Error("expected context error")
	}
	if ocr.calls != 0 {
		t.Errorf("OCR ran %d times after cancel", ocr.calls)
	}
}
