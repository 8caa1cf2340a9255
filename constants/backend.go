package constants

import (
	"fmt"
	"strings"
)

// BackendKind identifies a recognition backend variant.
type BackendKind string

const (
	BackendAuto        BackendKind = "auto"
	BackendStructured  BackendKind = "structured"
	BackendRegion      BackendKind = "region"
	BackendWordCluster BackendKind = "wordcluster"
	BackendMock        BackendKind = "mock"
)

// FallbackOrder is the preference order tried when no backend is forced.
var FallbackOrder = []BackendKind{
	BackendStructured,
	BackendRegion,
	BackendWordCluster,
}

// ParseBackendKind accepts the canonical names plus the legacy engine names
// (dots, easyocr, tesseract) still found in older deployments' env files.
func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BackendAuto, nil
	case "structured", "dots":
		return BackendStructured, nil
	case "region", "easyocr":
		return BackendRegion, nil
	case "wordcluster", "tesseract":
		return BackendWordCluster, nil
	case "mock":
		return BackendMock, nil
	default:
		return "", fmt.Errorf("unknown ocr backend %q", s)
	}
}

// BackendKindsAsStringSlice lists the kinds that may be recorded on a job.
func BackendKindsAsStringSlice() []string {
	return []string{
		string(BackendStructured),
		string(BackendRegion),
		string(BackendWordCluster),
		string(BackendMock),
	}
}
