package platform

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagIncludesGOOSAndGOARCH(t *testing.T) {
	tag := Tag()
	assert.True(t, strings.HasPrefix(tag, "go-"))
	assert.Contains(t, tag, runtime.GOOS)
	assert.Contains(t, tag, runtime.GOARCH)
}
