package routes

import (
	"os"
	"time"
)

func timeNow() time.Time {
	return time.Now().UTC()
}

func readUploaded(path string) ([]byte, error) {
	return os.ReadFile(path)
}
