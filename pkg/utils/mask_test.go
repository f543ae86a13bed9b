package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskMobile(t *testing.T) {
	assert.Equal(t, "98******10", MaskMobile("9876543210"))
	assert.Equal(t, "***", MaskMobile("987"))
	assert.Equal(t, "", MaskMobile(""))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "a***@example.com", MaskEmail("asha@example.com"))
	assert.Equal(t, "no**il", MaskEmail("nomail"))
}
