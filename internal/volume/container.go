// Package volume implements the top-level orchestrator and the logical-volume reader: it
// opens a physical-volume image, decodes the superblock, selects the freshest plaintext
// metadata region, decrypts the primary (or, on failure, secondary) encrypted-metadata
// region, and exposes each discovered logical volume as an
// interfaces.LogicalVolumeReader. One Container owns the open image, the parsed
// superblock, and a sync.RWMutex that LogicalVolumes and OpenLogicalVolume hold for
// reading; no method takes it for writing, and the other Container methods and
// logical-volume reads do not take it at all.
package volume

import (
	"bytes"
	"sync"

	"github.com/deploymenttheory/go-fvde/internal/crypto"
	"github.com/deploymenttheory/go-fvde/internal/diskio"
	"github.com/deploymenttheory/go-fvde/internal/interfaces"
	"github.com/deploymenttheory/go-fvde/internal/managers/keyunwrap"
	"github.com/deploymenttheory/go-fvde/internal/parsers/encryptedmetadata"
	"github.com/deploymenttheory/go-fvde/internal/parsers/header"
	"github.com/deploymenttheory/go-fvde/internal/parsers/metadata"
	"github.com/deploymenttheory/go-fvde/internal/plist"
	"github.com/deploymenttheory/go-fvde/internal/types"
)

// Options configures Open. The zero value is a valid, non-verbose configuration with no
// out-of-band EncryptedRoot.plist.
type Options struct {
	// Verbose keeps the encrypted-metadata pipeline walking blocks past the terminator
	// block; those tail blocks are not decrypted, dispatched, or reported.
	Verbose bool

	// EncryptedRootPlistData, when non-nil, is an out-of-band EncryptedRoot.plist file's
	// raw bytes, decrypted and parsed in place of whatever plist the encrypted-metadata
	// region itself reassembles. A decryption or parse failure fails Open; there is no
	// fallback to the region's plist.
	EncryptedRootPlistData []byte

	// Config overrides the diskio pool configuration; nil uses diskio.LoadConfig's
	// defaults.
	Config *diskio.Config

	// AbortCheck, when non-nil, is consulted cooperatively once per block during the
	// encrypted-metadata scan; returning true stops the scan with an error.
	AbortCheck func() bool
}

// Container owns one physical volume's worth of parsed state: the superblock, the
// plaintext metadata roster, the decrypted object graph, and the shared I/O pool every
// unlocked logical volume reads through.
type Container struct {
	mu sync.RWMutex

	pool   interfaces.IOPool
	header *types.VolumeHeader
	md     *types.Metadata
	state  *types.EncryptedMetadataState

	crypto     interfaces.CryptoPrimitives
	plistParse interfaces.PlistParser
	unwrapper  interfaces.KeyUnwrapper
	decryptor  interfaces.PlistDecryptor
	config     *diskio.Config

	plist     interfaces.PlistProperty
	plistOnce sync.Once
	plistErr  error
}

// Open discovers the Core Storage layout of the physical-volume image at path: the
// superblock, the freshest plaintext metadata region, and the object graph decrypted
// from the primary or secondary encrypted-metadata region. It does not attempt to unlock
// any logical volume; callers drive that through the returned LogicalVolumeReader
// handles.
func Open(path string, opts Options) (*Container, error) {
	handle, err := diskio.OpenFile(path)
	if err != nil {
		return nil, err
	}

	pool := diskio.NewPool()
	pool.SetHandle(0, handle)

	c, err := openFromPool(pool, opts)
	if err != nil {
		pool.CloseAll()
		return nil, err
	}
	return c, nil
}

// openFromPool performs the Open sequence against an already-populated pool, so tests
// can supply an in-memory IOHandle without touching the filesystem.
func openFromPool(pool interfaces.IOPool, opts Options) (*Container, error) {
	handle, ok := pool.Handle(0)
	if !ok {
		return nil, types.Errorf(types.ErrInvalidArgument, "openFromPool", "pool has no handle at index 0")
	}

	raw := make([]byte, types.VolumeHeaderSize)
	if _, err := handle.ReadAt(raw, 0); err != nil {
		return nil, types.Errorf(types.ErrIoFailure, "openFromPool", "reading volume header: %v", err)
	}
	headerReader, err := header.New(raw)
	if err != nil {
		return nil, err
	}
	vh := headerReader.Header()

	cryptoPrimitives := crypto.New()
	framer := metadata.NewFramer(cryptoPrimitives)
	plaintextReader := metadata.NewPlaintextReader(framer)

	md, err := plaintextReader.Read(handle, vh)
	if err != nil {
		return nil, err
	}

	plistParser := plist.New()
	graph := encryptedmetadata.NewGraphBuilder(cryptoPrimitives, plistParser)
	pipeline := encryptedmetadata.NewPipeline(cryptoPrimitives, framer, graph)
	if opts.AbortCheck != nil {
		pipeline.SetAbortCheck(opts.AbortCheck)
	}

	state, err := readEncryptedMetadata(pool, md, vh, pipeline, opts.Verbose)
	if err != nil {
		return nil, err
	}

	config := opts.Config
	if config == nil {
		config, err = diskio.LoadConfig()
		if err != nil {
			return nil, err
		}
	}

	c := &Container{
		pool:       pool,
		header:     vh,
		md:         md,
		state:      state,
		crypto:     cryptoPrimitives,
		plistParse: plistParser,
		unwrapper:  keyunwrap.NewKeyUnwrapper(cryptoPrimitives),
		decryptor:  keyunwrap.NewPlistDecryptor(cryptoPrimitives, plistParser),
		config:     config,
	}

	if len(opts.EncryptedRootPlistData) > 0 {
		root, err := c.decryptor.DecryptPlistFile(opts.EncryptedRootPlistData, vh.XTSDataKey(), zeroXTSKey())
		if err != nil {
			return nil, err
		}
		c.plist = root
		c.plistOnce.Do(func() {})
	}

	return c, nil
}

// zeroXTSKey returns the all-zero tweak key used for EncryptedRoot.plist decryption.
func zeroXTSKey() [16]byte { return [16]byte{} }

// readEncryptedMetadata tries the primary encrypted-metadata region first, falling back
// to the secondary on any decryption, framing, or block-handler error.
func readEncryptedMetadata(pool interfaces.IOPool, md *types.Metadata, vh *types.VolumeHeader, pipeline interfaces.EncryptedMetadataPipeline, verbose bool) (*types.EncryptedMetadataState, error) {
	type candidate struct {
		volumeIndex uint32
		offset      uint64
	}
	candidates := []candidate{
		{md.EncryptedMetadata1VolumeIndex, md.EncryptedMetadata1Offset},
		{md.EncryptedMetadata2VolumeIndex, md.EncryptedMetadata2Offset},
	}

	var lastErr error
	for _, cand := range candidates {
		handle, ok := pool.Handle(int(cand.volumeIndex))
		if !ok {
			// Multi-physical-volume groups are read best-effort on the first physical volume
			// only. A candidate region owned by any other physical volume is simply
			// unavailable here.
			lastErr = types.Errorf(types.ErrIoFailure, "readEncryptedMetadata", "physical volume index %d not open", cand.volumeIndex)
			continue
		}

		region := make([]byte, md.EncryptedMetadataSize)
		if _, err := handle.ReadAt(region, int64(cand.offset)); err != nil {
			lastErr = types.Errorf(types.ErrIoFailure, "readEncryptedMetadata", "reading region at offset %d: %v", cand.offset, err)
			continue
		}

		state, err := pipeline.Parse(region, vh.XTSDataKey(), vh.XTSTweakKey(), verbose)
		if err != nil {
			lastErr = err
			continue
		}
		return state, nil
	}
	if lastErr == nil {
		lastErr = types.Errorf(types.ErrIoFailure, "readEncryptedMetadata", "no encrypted metadata region candidates")
	}
	return nil, lastErr
}

// EncryptionContextPlist lazily parses the plist recovered from the encrypted-metadata
// region's DEFLATE chain, or returns the plist already installed from an out-of-band
// EncryptedRoot.plist file. The result is cached; every LogicalVolume unlock attempt
// shares the same parse.
func (c *Container) EncryptionContextPlist() (interfaces.PlistProperty, error) {
	c.plistOnce.Do(func() {
		if c.plist != nil {
			return
		}
		if len(c.state.EncryptionContextPlistData) == 0 {
			c.plistErr = types.Errorf(types.ErrValueMissing, "EncryptionContextPlist", "no EncryptedRoot.plist available from the encrypted-metadata region or an out-of-band file")
			return
		}
		c.plist, c.plistErr = parsePlistData(c.plistParse, c.state.EncryptionContextPlistData)
	})
	return c.plist, c.plistErr
}

// parsePlistData parses data as a full <?xml ...><plist>...</plist> document, or, when
// the DEFLATE/inline reassembly captured only the bare top-level <dict>, as a fragment.
// The 0x0024 DEFLATE completion path installs only output that begins with <dict; the
// 0x0019 inline path installs its chunk without a prefix check, so either form can
// arrive here.
func parsePlistData(parser interfaces.PlistParser, data []byte) (interfaces.PlistProperty, error) {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("<?xml")) {
		return parser.Parse(data)
	}
	return parser.ParseFragment(data)
}

// LogicalVolumes returns every logical-volume descriptor discovered in the encrypted
// metadata region, in roster order.
func (c *Container) LogicalVolumes() []*types.LogicalVolumeDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.LogicalVolumes
}

// PhysicalVolumes returns the physical-volume roster extracted by the plaintext
// metadata reader, used to cross-check a logical volume's segment map.
func (c *Container) PhysicalVolumes() []types.PhysicalVolumeDescriptor {
	return c.md.PhysicalVolumes
}

// OpenLogicalVolume returns a locked LogicalVolumeReader for the logical volume with the
// given identifier. The caller must record a credential with SetKey, SetPassphrase, or
// SetRecoveryPassphrase and then call Unlock before reading.
func (c *Container) OpenLogicalVolume(identifier types.UUID) (interfaces.LogicalVolumeReader, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, desc := range c.state.LogicalVolumes {
		if desc.Identifier == identifier {
			return newLogicalVolume(c, desc), nil
		}
	}
	return nil, types.Errorf(types.ErrValueMissing, "OpenLogicalVolume", "no logical volume with identifier %s", identifier)
}

// Close releases every I/O handle in the pool.
func (c *Container) Close() error {
	return c.pool.CloseAll()
}
