package validate

import (
	"strings"
	"testing"

	"github.com/tiervault/tiervault/pkg/errors"
)

const mb = 1024 * 1024

func defaultValidator() *Validator {
	return New(50*mb, []string{".jpg", ".png", ".pdf", ".docx"})
}

func TestValidate(t *testing.T) {
	v := defaultValidator()

	tests := []struct {
		name       string
		fileName   string
		sizeBytes  int64
		accepted   bool
		wantReason errors.ErrorCode
	}{
		{"accepted jpg", "photo.jpg", 10 * mb, true, ""},
		{"accepted png at limit", "chart.png", 50 * mb, true, ""},
		{"accepted pdf", "report.pdf", 1, true, ""},
		{"accepted docx", "letter.docx", 3 * mb, true, ""},
		{"uppercase extension accepted", "PHOTO.JPG", 1 * mb, true, ""},
		{"rejected mp4", "video.mp4", 1 * mb, false, errors.ErrCodeUnsupportedType},
		{"rejected oversize docx", "doc.docx", 60 * mb, false, errors.ErrCodeFileTooLarge},
		{"size checked before extension", "video.mp4", 60 * mb, false, errors.ErrCodeFileTooLarge},
		{"one byte over limit", "photo.jpg", 50*mb + 1, false, errors.ErrCodeFileTooLarge},
		{"empty name", "", 1 * mb, false, errors.ErrCodeUnsupportedType},
		{"extensionless name", "README", 1 * mb, false, errors.ErrCodeUnsupportedType},
		{"bare dot extension", "weird.", 1 * mb, false, errors.ErrCodeUnsupportedType},
		{"zero size unsupported type", "script.sh", 0, false, errors.ErrCodeUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(tt.fileName, tt.sizeBytes)

			if result.Accepted != tt.accepted {
				t.Errorf("Accepted = %v, want %v", result.Accepted, tt.accepted)
			}
			if tt.accepted {
				if err != nil {
					t.Errorf("Expected nil error for accepted file, got %v", err)
				}
				if result.Reason != "" {
					t.Errorf("Expected empty reason for accepted file, got %q", result.Reason)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected error for rejected file")
			}
			if !errors.IsCode(err, tt.wantReason) {
				t.Errorf("Error code = %v, want %v", errors.CodeOf(err), tt.wantReason)
			}
			if result.Reason != string(tt.wantReason) {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidate_TotalOverArbitraryInput(t *testing.T) {
	v := defaultValidator()

	inputs := []struct {
		name string
		size int64
	}{
		{strings.Repeat("x", 4096) + ".jpg", 1},
		{"..jpg", 1},
		{".jpg", 1},
		{"dir/nested/photo.png", 1},
		{"\x00binary\x00.pdf", 1},
		{"negative.jpg", -1},
	}

	for _, in := range inputs {
		// Must never panic, and must always produce a definite result.
		result, _ := v.Validate(in.name, in.size)
		if !result.Accepted && result.Reason == "" {
			t.Errorf("Rejected %q without a reason", in.name)
		}
	}
}

func TestValidate_CustomRules(t *testing.T) {
	v := New(1*mb, []string{".txt"})

	if result, _ := v.Validate("notes.txt", 512); !result.Accepted {
		t.Error("Expected .txt accepted under custom rules")
	}
	if result, _ := v.Validate("photo.jpg", 512); result.Accepted {
		t.Error("Expected .jpg rejected under custom rules")
	}
	if result, _ := v.Validate("notes.txt", 2*mb); result.Accepted {
		t.Error("Expected oversize file rejected under custom limit")
	}
}
