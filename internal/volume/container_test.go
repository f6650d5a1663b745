package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-fvde/internal/plist"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

func TestParsePlistDataDispatchesOnPrefix(t *testing.T) {
	parser := plist.New()

	fragment := []byte(`<dict><key>Foo</key><string>bar</string></dict>`)
	prop, err := parsePlistData(parser, fragment)
	require.NoError(t, err)
	sub, ok := prop.SubPropertyByName("Foo")
	require.True(t, ok)
	val, err := sub.ValueString()
	require.NoError(t, err)
	assert.Equal(t, "bar", val)

	full := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0"><dict><key>Foo</key><string>baz</string></dict></plist>`)
	prop, err = parsePlistData(parser, full)
	require.NoError(t, err)
	sub, ok = prop.SubPropertyByName("Foo")
	require.True(t, ok)
	val, err = sub.ValueString()
	require.NoError(t, err)
	assert.Equal(t, "baz", val)
}

func TestParsePlistDataTrimsLeadingWhitespace(t *testing.T) {
	parser := plist.New()
	data := []byte("  \n<?xml version=\"1.0\"?><plist><dict/></plist>")
	_, err := parsePlistData(parser, data)
	require.NoError(t, err)
}

func TestZeroXTSKeyIsAllZero(t *testing.T) {
	assert.Equal(t, [16]byte{}, zeroXTSKey())
}

func TestContainerLogicalVolumesAndLookup(t *testing.T) {
	first := newTestDescriptor(100)
	first.Identifier = types.UUID{1}
	second := newTestDescriptor(200)
	second.Identifier = types.UUID{2}

	container, _ := newTestContainer(0)
	container.state = &types.EncryptedMetadataState{
		LogicalVolumes: []*types.LogicalVolumeDescriptor{first, second},
	}

	volumes := container.LogicalVolumes()
	require.Len(t, volumes, 2)
	assert.Same(t, first, volumes[0])

	reader, err := container.OpenLogicalVolume(types.UUID{2})
	require.NoError(t, err)
	assert.Equal(t, types.UUID{2}, reader.Identifier())

	_, err = container.OpenLogicalVolume(types.UUID{9, 9, 9})
	require.Error(t, err)
	var fvdeErr *types.Error
	require.ErrorAs(t, err, &fvdeErr)
	assert.Equal(t, types.ErrValueMissing, fvdeErr.Kind)
}

func TestContainerPhysicalVolumes(t *testing.T) {
	container, _ := newTestContainer(0)
	container.md.PhysicalVolumes = []types.PhysicalVolumeDescriptor{
		{Identifier: types.UUID{1}, Size: 1024},
	}
	assert.Equal(t, container.md.PhysicalVolumes, container.PhysicalVolumes())
}

func TestContainerEncryptionContextPlistCachesResult(t *testing.T) {
	parser := plist.New()
	container, _ := newTestContainer(0)
	container.plistParse = parser
	container.state = &types.EncryptedMetadataState{
		EncryptionContextPlistData: []byte(`<dict><key>A</key><string>one</string></dict>`),
	}

	prop, err := container.EncryptionContextPlist()
	require.NoError(t, err)
	sub, ok := prop.SubPropertyByName("A")
	require.True(t, ok)
	val, err := sub.ValueString()
	require.NoError(t, err)
	assert.Equal(t, "one", val)

	// Mutate the backing state; a cached call must not re-parse.
	container.state.EncryptionContextPlistData = nil
	prop2, err := container.EncryptionContextPlist()
	require.NoError(t, err)
	assert.Same(t, prop, prop2)
}

func TestContainerEncryptionContextPlistMissingIsError(t *testing.T) {
	container, _ := newTestContainer(0)
	container.state = &types.EncryptedMetadataState{}

	_, err := container.EncryptionContextPlist()
	require.Error(t, err)
	var fvdeErr *types.Error
	require.ErrorAs(t, err, &fvdeErr)
	assert.Equal(t, types.ErrValueMissing, fvdeErr.Kind)
}

func TestContainerEncryptionContextPlistPrefersOutOfBandPlist(t *testing.T) {
	parser := plist.New()
	container, _ := newTestContainer(0)
	container.plistParse = parser
	out, err := parser.ParseFragment([]byte(`<dict><key>Src</key><string>oob</string></dict>`))
	require.NoError(t, err)
	container.plist = out
	container.plistOnce.Do(func() {})
	container.state = &types.EncryptedMetadataState{
		EncryptionContextPlistData: []byte(`<dict><key>Src</key><string>region</string></dict>`),
	}

	prop, err := container.EncryptionContextPlist()
	require.NoError(t, err)
	sub, ok := prop.SubPropertyByName("Src")
	require.True(t, ok)
	val, err := sub.ValueString()
	require.NoError(t, err)
	assert.Equal(t, "oob", val)
}

func TestContainerClose(t *testing.T) {
	container, _ := newTestContainer(16)
	require.NoError(t, container.Close())
}
