package protocol

import (
	"errors"
	"testing"
)

func TestValidateCommand_Valid(t *testing.T) {
	valid := []string{
		"status",
		"dns-res example.com",
		"  upload file.txt  ", // surrounding whitespace is trimmed
		"search \"two words\"",
	}

	for _, cmd := range valid {
		if err := ValidateCommand(cmd); err != nil {
			t.Errorf("ValidateCommand(%q) = %v, want nil", cmd, err)
		}
	}
}

func TestValidateCommand_Empty(t *testing.T) {
	empty := []string{"", "   ", "\n", "\t \n"}

	for _, cmd := range empty {
		err := ValidateCommand(cmd)
		if !errors.Is(err, ErrEmptyCommand) {
			t.Errorf("ValidateCommand(%q) = %v, want ErrEmptyCommand", cmd, err)
		}
	}
}

func TestValidateCommand_Multiline(t *testing.T) {
	multiline := []string{
		"status\nupload",
		"status\rupload",
		"status\x00upload",
	}

	for _, cmd := range multiline {
		err := ValidateCommand(cmd)
		if !errors.Is(err, ErrMultiline) {
			t.Errorf("ValidateCommand(%q) = %v, want ErrMultiline", cmd, err)
		}
	}
}

func TestParseLogPath(t *testing.T) {
	tests := []struct {
		content  string
		wantPath string
		wantOK   bool
	}{
		{"/tmp/logs/abc.log", "/tmp/logs/abc.log", true},
		{"/tmp/logs/abc.log\n", "/tmp/logs/abc.log", true},
		{"  /var/state/out.log  ", "/var/state/out.log", true},
		{"status", "", false},
		{"relative/path.log", "", false},
		{"", "", false},
		{"   ", "", false},
		{"/tmp/a.log\n/tmp/b.log", "", false},
	}

	for _, tt := range tests {
		path, ok := ParseLogPath(tt.content)
		if ok != tt.wantOK || path != tt.wantPath {
			t.Errorf("ParseLogPath(%q) = (%q, %v), want (%q, %v)",
				tt.content, path, ok, tt.wantPath, tt.wantOK)
		}
	}
}
