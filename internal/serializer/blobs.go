package serializer

// Distribution commands, in the order clients request them.
const (
	CmdHeader     = "header"
	CmdNodes      = "nodes"
	CmdObjects    = "objects"
	CmdMaterials  = "materials"
	CmdTextures   = "textures"
	CmdCharacters = "characters"
)

// Commands lists every distribution command in request order.
var Commands = []string{CmdHeader, CmdNodes, CmdObjects, CmdMaterials, CmdTextures, CmdCharacters}

// Blobs are the encoded sections of one pass.
type Blobs struct {
	Header     []byte
	Nodes      []byte
	Geometry   []byte
	Materials  []byte
	Textures   []byte
	Characters []byte
}

// Lookup returns the blob answering a distribution command. "objects" is
// the geometry section.
func (b *Blobs) Lookup(cmd string) ([]byte, bool) {
	switch cmd {
	case CmdHeader:
		return b.Header, true
	case CmdNodes:
		return b.Nodes, true
	case CmdObjects:
		return b.Geometry, true
	case CmdMaterials:
		return b.Materials, true
	case CmdTextures:
		return b.Textures, true
	case CmdCharacters:
		return b.Characters, true
	}
	return nil, false
}

// Table returns the blobs keyed by command.
func (b *Blobs) Table() map[string][]byte {
	t := make(map[string][]byte, len(Commands))
	for _, cmd := range Commands {
		blob, _ := b.Lookup(cmd)
		t[cmd] = blob
	}
	return t
}

// Size returns the total encoded size.
func (b *Blobs) Size() int {
	return len(b.Header) + len(b.Nodes) + len(b.Geometry) + len(b.Materials) + len(b.Textures) + len(b.Characters)
}
