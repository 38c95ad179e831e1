package whisper

import "os"

// writeTempSRT writes content to a new temp file and returns its path. The
// caller in internal/translator owns removing it once it has been read,
// matching the atomic-handoff contract already in place for Case C1's
// embedded-extraction path.
func writeTempSRT(content string) (string, error) {
	f, err := os.CreateTemp("", "sublarr-whisper-*.srt")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
