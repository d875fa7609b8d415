package helpers

import (
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()
	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))
	err := FoldErrors([]error{fmt.Errorf("usb close"), nil, fmt.Errorf("ctx close")})
	assert.EqualError(t, err, "usb close\nctx close")

	single := errors.NotFoundf("device")
	err = FoldErrors([]error{nil, single})
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, single, err)
}
