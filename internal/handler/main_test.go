package handler

import (
	"os"
	"testing"

	"tabletalk-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "json", "")
	os.Exit(m.Run())
}
