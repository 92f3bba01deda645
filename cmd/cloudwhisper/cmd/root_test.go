package cmd

import (
	"path/filepath"
	"testing"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
)

func TestExecuteExitCodes(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"--bogus"}, apperr.ExitTranscriptionFailed},
		{"missing model", []string{
			"--engine", "vosk",
			"--model-path", filepath.Join(t.TempDir(), "missing"),
			"--file", "speech.wav",
		}, apperr.ExitModelLoad},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rootCmd.SetArgs(tc.args)
			if got := Execute(); got != tc.want {
				t.Errorf("Expected exit %d, got %d", tc.want, got)
			}
		})
	}
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	if err := rootCmd.ParseFlags([]string{"-s", "9", "--translator", "none", "-l", "French"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(rootCmd)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Audio.Duration.Seconds() != 9 {
		t.Errorf("Expected 9s, got %v", cfg.Audio.Duration)
	}
	if cfg.Translation.Provider != "none" || cfg.Translation.DefaultLabel != "French" {
		t.Errorf("Unexpected translation section: %+v", cfg.Translation)
	}
}
