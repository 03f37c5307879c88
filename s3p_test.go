package s3p

import (
	"bytes"
	"context"
	"testing"

	"github.com/paradigmatech/gos3p/internal/testnode"
	"github.com/paradigmatech/gos3p/pkg/metadata"
	"github.com/paradigmatech/gos3p/pkg/transport"
	"github.com/paradigmatech/gos3p/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	managerID uint8 = 0x6A
	nodeID    uint8 = 0x2A
)

func newManagerAndNode(t *testing.T) (*Manager, *testnode.Node) {
	t.Helper()
	local, remote := transport.NewPipePair()

	node := testnode.New(remote, nodeID)
	node.AddRegister(testnode.Register{
		ID: 1, Tag: value.U8, Flags: metadata.FlagMutable, Name: "mode",
		Val: value.FromU8(3),
	})
	node.AddRegister(testnode.Register{
		ID: 2, Tag: value.U32, Name: "uptime",
		Val: value.FromU32(86400),
	})
	node.AddRegister(testnode.Register{
		ID: 5, Tag: value.STR, Flags: metadata.FlagMutable | metadata.FlagPersist, Name: "hostname",
		Str: "node-a",
	})
	node.AddRegion(testnode.Region{
		Type: metadata.MemFRAM, VStart: 0x10000000,
		Flags: metadata.VFRead | metadata.VFWrite, Name: "fram",
		Data: make([]byte, 4096),
	})
	node.Start()
	t.Cleanup(node.Stop)
	t.Cleanup(func() { remote.Close() })

	mgr := NewManager(local, managerID, nodeID, nil)
	t.Cleanup(func() { mgr.Close() })
	return mgr, node
}

func TestPing(t *testing.T) {
	mgr, _ := newManagerAndNode(t)
	rtt, err := mgr.Ping(context.Background())
	require.NoError(t, err)
	assert.Greater(t, rtt.Nanoseconds(), int64(0))
}

func TestRefreshDownloadsMetadata(t *testing.T) {
	mgr, _ := newManagerAndNode(t)
	ctx := context.Background()

	require.NoError(t, mgr.Refresh(ctx, nil, nil))

	regs, err := mgr.Registers(ctx)
	require.NoError(t, err)
	assert.True(t, regs.Complete)
	assert.Len(t, regs.All(), 3)

	mode, ok := regs.Get(1)
	require.True(t, ok)
	assert.Equal(t, "mode", mode.Name)
	assert.True(t, mode.Mutable())
	assert.False(t, mode.Persist())

	vmem, err := mgr.VMEMRows(ctx)
	require.NoError(t, err)
	rows := vmem.All()
	require.Len(t, rows, 1)
	assert.Equal(t, "fram", rows[0].Name)
	assert.EqualValues(t, 0x10000000, rows[0].VStart)
	assert.True(t, rows[0].Readable())
	assert.True(t, rows[0].Writable())
	assert.False(t, rows[0].Mirrored())
}

func TestGetSetScalar(t *testing.T) {
	mgr, node := newManagerAndNode(t)
	ctx := context.Background()
	require.NoError(t, mgr.Refresh(ctx, nil, nil))

	v, err := mgr.Get(ctx, 1)
	require.NoError(t, err)
	u, err := v.AsU8()
	require.NoError(t, err)
	assert.EqualValues(t, 3, u)

	require.NoError(t, mgr.Set(ctx, 1, value.FromU8(7)))
	after, err := node.Register(1).Val.AsU8()
	require.NoError(t, err)
	assert.EqualValues(t, 7, after)
}

func TestGetSetString(t *testing.T) {
	mgr, node := newManagerAndNode(t)
	ctx := context.Background()
	require.NoError(t, mgr.Refresh(ctx, nil, nil))

	v, err := mgr.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, value.STR, v.Tag)
	assert.Equal(t, "node-a", v.Str)

	require.NoError(t, mgr.Set(ctx, 5, value.FromString("node-b")))
	assert.Equal(t, "node-b", node.Register(5).Str)
}

func TestSetTagMismatchFailsLocally(t *testing.T) {
	mgr, _ := newManagerAndNode(t)
	ctx := context.Background()
	require.NoError(t, mgr.Refresh(ctx, nil, nil))

	assert.ErrorIs(t, mgr.Set(ctx, 5, value.FromU8(1)), ErrNotAString)
	assert.ErrorIs(t, mgr.Set(ctx, 1, value.FromString("x")), ErrScalarAsString)
}

func TestLookupByName(t *testing.T) {
	mgr, _ := newManagerAndNode(t)
	ctx := context.Background()

	_, err := mgr.Lookup("mode")
	assert.ErrorIs(t, err, ErrNoMetadata)

	require.NoError(t, mgr.Refresh(ctx, nil, nil))
	reg, err := mgr.Lookup("uptime")
	require.NoError(t, err)
	assert.EqualValues(t, 2, reg.ID)

	_, err = mgr.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownName)
}

func TestVMEMRoundTrip(t *testing.T) {
	mgr, _ := newManagerAndNode(t)
	ctx := context.Background()

	payload := make([]byte, 2050)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	n, err := mgr.UploadVMEM(ctx, 0x10000000, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	var out bytes.Buffer
	n, err = mgr.DownloadVMEM(ctx, 0x10000000, len(payload), &out)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, out.Bytes())
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "1.00", VersionString(ProtocolVersion))
	assert.Equal(t, "2.05", VersionString(0x0205))
}
