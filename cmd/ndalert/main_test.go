package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xraas_nd/internal/ndalert"
)

const wantSample = "RAW VALUE\tCOLOR\tMESSAGE\n" +
	"----------\t-----\t-------\n" +
	"0x00000041\tAMBER\tFLAPS\n" +
	"0x00000042\tAMBER\tTOO HIGH\n" +
	"0x00000043\tAMBER\tTOO FAST\n" +
	"0x00000044\tAMBER\tUNSTABLE\n" +
	"0x00000045\tAMBER\tTAXIWAY\n" +
	"0x00000046\tAMBER\tSHORT RUNWAY\n" +
	"0x00000047\tAMBER\tALTM SETTING\n" +
	"0x00002308\tGREEN\tAPP 35\n" +
	"0x00006308\tGREEN\tAPP 35R\n" +
	"0x00002508\tGREEN\tAPP RWYS\n" +
	"0x00142348\tAMBER\tAPP 35 20\n" +
	"0x00086348\tAMBER\tAPP 35R 08\n" +
	"0x00000049\tAMBER\tON TAXIWAY\n" +
	"0x00002309\tGREEN\tON 35\n" +
	"0x00006309\tGREEN\tON 35R\n" +
	"0x00002509\tGREEN\tON RWYS\n" +
	"0x0014e349\tAMBER\tON 35C 20\n" +
	"0x0008a349\tAMBER\tON 35L 08\n" +
	"0x0000004a\tAMBER\tLONG LANDING\n"

func TestSampleTable(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, runSample(&buf))
	assert.Equal(t, wantSample, buf.String())
}

func TestSampleTableFailure(t *testing.T) {
	var buf bytes.Buffer
	failed := writeSampleTable(&buf, []uint32{0x41, 0, 0x3F})
	assert.Equal(t, 2, failed)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"), "failed rows are not printed")
}

func TestDecodeCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := runDecode([]string{"65", "0x0008A349"}, nil, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "0x00000041\tAMBER\tFLAPS\n")
	assert.Contains(t, out.String(), "0x0008a349\tAMBER\tON 35L 08\n")
	assert.Empty(t, errOut.String())
}

func TestDecodeCommandStdinJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	in := strings.NewReader("73\n\n0\nbogus\n")
	code := runDecode([]string{"-json"}, in, &out, &errOut)
	assert.Equal(t, 1, code)

	var got []DecodeOut
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 3)

	assert.True(t, got[0].Decoded)
	require.NotNil(t, got[0].Alert)
	assert.Equal(t, "ON TAXIWAY", got[0].Alert.Text)
	assert.Equal(t, ndalert.OnRunway, got[0].Alert.Type)

	assert.False(t, got[1].Decoded)
	assert.Equal(t, ndalert.ErrUndecodable.Error(), got[1].Error)

	assert.False(t, got[2].Decoded)
	assert.NotEmpty(t, got[2].Error)
}

func TestEncodeCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := runEncode([]string{"-type", "8", "-level", "caution", "-runway", "35", "-distance", "2000", "-metric"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Equal(t, "0x00142348\t1319752\tAMBER\tAPP 35 20\n", out.String())

	out.Reset()
	code = runEncode([]string{"-type", "1", "-filter", "caution"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Empty(t, out.String())

	assert.Equal(t, 2, runEncode([]string{"-type", "1", "-level", "loud"}, &out, &errOut))
	assert.Equal(t, 2, runEncode([]string{"-type", "99"}, &out, &errOut))
	assert.Equal(t, 2, runEncode([]string{"-type", "12"}, &out, &errOut))
}

func TestSplitKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitKeys(" a, ,b,"))
	assert.Nil(t, splitKeys(""))
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("ND_TEST_STR", "x")
	t.Setenv("ND_TEST_INT", "42")
	t.Setenv("ND_TEST_BAD", "nope")

	assert.Equal(t, "x", envOrDefault("ND_TEST_STR", "y"))
	assert.Equal(t, "y", envOrDefault("ND_TEST_UNSET", "y"))
	assert.Equal(t, 42, envOrDefaultInt("ND_TEST_INT", 1))
	assert.Equal(t, 1, envOrDefaultInt("ND_TEST_BAD", 1))
	assert.True(t, envOrDefaultBool("ND_TEST_UNSET", true))
	assert.True(t, envOrDefaultBool("ND_TEST_BAD", true))
}

func TestListenRejectsAuthWithoutKeys(t *testing.T) {
	t.Setenv("API_KEYS", "")
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, 2, runListen([]string{"-port", "8080", "-auth"}))
}
