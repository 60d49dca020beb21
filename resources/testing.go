package resources

import (
	"testing"

	"github.com/activecm/connwatch/config"
)

//InitTestingResources creates a default testing resource bundle
//watching logFile. Nothing is logged to the console.
func InitTestingResources(t *testing.T, logFile string) *Resources {
	conf, err := config.LoadTestingConfig(logFile)
	if err != nil {
		t.Fatal(err)
	}

	res, err := newResources(conf)
	if err != nil {
		t.Fatal(err)
	}
	return res
}
