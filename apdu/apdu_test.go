package apdu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundtrip(t *testing.T) {
	cmd := Command{
		Cla:     ClaDefault,
		Ins:     InsSign,
		P1:      IndexOther | IndexLast,
		P2:      2,
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
	}

	raw, err := cmd.Encode()
	require.NoError(t, err)
	require.Equal(t, HeaderLen+4, len(raw))
	assert.Equal(t, byte(0x80), raw[0])
	assert.Equal(t, byte(0x04), raw[1])
	assert.Equal(t, byte(0x81), raw[2])
	assert.Equal(t, byte(0x02), raw[3])
	assert.Equal(t, byte(0x04), raw[4])

	back, err := DecodeCommand(raw)
	require.NoError(t, err)
	assert.Equal(t, cmd, back)
}

func TestCommandRoundtripEmpty(t *testing.T) {
	cmd := Command{Cla: ClaDefault, Ins: InsVersion}

	raw, err := cmd.Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{0x80, 0x00, 0x00, 0x00, 0x00}, raw)

	back, err := DecodeCommand(raw)
	require.NoError(t, err)
	assert.Equal(t, InsVersion, back.Ins)
	assert.Empty(t, back.Payload)
}

func TestDecodeCommandRejects(t *testing.T) {
	_, err := DecodeCommand([]byte{0x80, 0x00, 0x00, 0x00})
	assert.ErrorIs(t, err, ErrShortFrame)

	// length byte promises more than the frame carries
	_, err = DecodeCommand([]byte{0x80, 0x04, 0x00, 0x00, 0x02, 0xaa})
	assert.ErrorIs(t, err, ErrFrameLength)

	// trailing bytes past the promised length
	_, err = DecodeCommand([]byte{0x80, 0x04, 0x00, 0x00, 0x01, 0xaa, 0xbb})
	assert.ErrorIs(t, err, ErrFrameLength)

	big := make([]byte, HeaderLen+MaxPacketSize+1)
	big[4] = MaxPacketSize + 1
	_, err = DecodeCommand(big)
	assert.ErrorIs(t, err, ErrPayloadSize)
}

func TestEncodeRejectsOversized(t *testing.T) {
	cmd := Command{Cla: ClaDefault, Ins: InsSign, Payload: make([]byte, MaxPacketSize+1)}

	_, err := cmd.Encode()
	assert.ErrorIs(t, err, ErrPayloadSize)
}

func TestDecodeCommandClonesPayload(t *testing.T) {
	raw := []byte{0x80, 0x04, 0x01, 0x00, 0x01, 0xaa}

	cmd, err := DecodeCommand(raw)
	require.NoError(t, err)

	raw[HeaderLen] = 0xbb
	assert.Equal(t, []byte{0xaa}, cmd.Payload)
}

func TestResponseRoundtrip(t *testing.T) {
	rsp := Response{Data: []byte{0x01, 0x02}, Status: StatusOK}

	raw := rsp.Encode()
	require.Equal(t, []byte{0x01, 0x02, 0x90, 0x00}, raw)

	back, err := DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, rsp, back)
}

func TestResponseStatusOnly(t *testing.T) {
	raw := Response{Status: StatusReject}.Encode()
	require.Equal(t, []byte{0x69, 0x85}, raw)

	back, err := DecodeResponse(raw)
	require.NoError(t, err)
	assert.Empty(t, back.Data)
	assert.Equal(t, StatusReject, back.Status)

	_, err = DecodeResponse([]byte{0x90})
	assert.ErrorIs(t, err, ErrShortReply)
}

func TestSignPackets(t *testing.T) {
	path := []byte{0x02, 0x80, 0x00, 0x00, 0x2c, 0x80, 0x00, 0x07, 0xb1}
	message := bytes.Repeat([]byte{0x05}, 2*MaxPacketSize+30)

	cmds := SignPackets(InsSignWithHash, 3, path, message)
	require.Len(t, cmds, 4)

	assert.Equal(t, IndexFirst, cmds[0].P1)
	assert.Equal(t, path, cmds[0].Payload)

	assert.Equal(t, IndexOther, cmds[1].P1)
	assert.Len(t, cmds[1].Payload, MaxPacketSize)
	assert.Equal(t, IndexOther, cmds[2].P1)
	assert.Len(t, cmds[2].Payload, MaxPacketSize)

	assert.Equal(t, IndexOther|IndexLast, cmds[3].P1)
	assert.Len(t, cmds[3].Payload, 30)

	for _, cmd := range cmds {
		assert.Equal(t, byte(ClaDefault), cmd.Cla)
		assert.Equal(t, InsSignWithHash, cmd.Ins)
		assert.Equal(t, byte(3), cmd.P2)
	}
}

func TestSignPacketsShortMessage(t *testing.T) {
	cmds := SignPackets(InsSign, 0, []byte{0x00}, []byte{0x03})
	require.Len(t, cmds, 2)
	assert.Equal(t, IndexOther|IndexLast, cmds[1].P1)
	assert.Equal(t, []byte{0x03}, cmds[1].Payload)

	cmds = SignPackets(InsSign, 0, []byte{0x00}, nil)
	require.Len(t, cmds, 2)
	assert.Equal(t, IndexOther|IndexLast, cmds[1].P1)
	assert.Empty(t, cmds[1].Payload)

	cmds = SignPackets(InsSign, 0, []byte{0x00}, bytes.Repeat([]byte{0x05}, MaxPacketSize))
	require.Len(t, cmds, 2)
	assert.Len(t, cmds[1].Payload, MaxPacketSize)
}

func TestPacketFlags(t *testing.T) {
	assert.True(t, First(0x00))
	assert.True(t, First(0x80))
	assert.False(t, First(0x01))
	assert.False(t, First(0x81))

	assert.False(t, Last(0x00))
	assert.False(t, Last(0x01))
	assert.True(t, Last(0x80))
	assert.True(t, Last(0x81))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "sign with hash", InsSignWithHash.String())
	assert.Equal(t, "unknown", Ins(0x42).String())
	assert.Equal(t, "rejected", StatusReject.String())
	assert.Equal(t, "status 0x1234", Status(0x1234).String())
}
