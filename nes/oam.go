package nes

// oamSprite is one 4-byte entry of Object Attribute Memory.
type oamSprite struct {
	y, id, attribute, x byte
}

// objectAttributeMemory is OAM's 64-sprite table. read/write operate
// through a pointer into the backing array so writes actually persist,
// rather than copying an entry by value into a local and mutating the
// copy.
type objectAttributeMemory [64]oamSprite

func (oam *objectAttributeMemory) read(addr byte) byte {
	s := &oam[int(addr)/4]
	switch addr % 4 {
	case 0:
		return s.y
	case 1:
		return s.id
	case 2:
		return s.attribute
	default:
		return s.x
	}
}

func (oam *objectAttributeMemory) write(addr, v byte) {
	s := &oam[int(addr)/4]
	switch addr % 4 {
	case 0:
		s.y = v
	case 1:
		s.id = v
	case 2:
		s.attribute = v
	default:
		s.x = v
	}
}

func (oam *objectAttributeMemory) clear() {
	for i := range oam {
		oam[i] = oamSprite{0xFF, 0xFF, 0xFF, 0xFF}
	}
}
