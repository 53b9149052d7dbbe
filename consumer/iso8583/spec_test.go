package iso8583_test

import (
	"bytes"
	"testing"

	purseiso "github.com/alovak/purseflow/consumer/iso8583"
	"github.com/stretchr/testify/require"
)

func TestMessageLengthHeader(t *testing.T) {
	var buf bytes.Buffer
	n, err := purseiso.WriteMessageLength(&buf, 300)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{0x01, 0x2c}, buf.Bytes())

	length, err := purseiso.ReadMessageLength(&buf)
	require.NoError(t, err)
	require.Equal(t, 300, length)

	_, err = purseiso.WriteMessageLength(&buf, 0x10000)
	require.Error(t, err)

	_, err = purseiso.ReadMessageLength(bytes.NewReader([]byte{0x01}))
	require.Error(t, err)
}
