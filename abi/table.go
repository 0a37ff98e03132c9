package abi

// Row is one line of a selection table.
type Row struct {
	Shape Shape
	Plain Entry
	Super Entry
}

// Table evaluates the selection rules for every size in sizes, once as
// an aggregate and, for sizes 4 and 8, once more as a float and as a
// wide scalar. It stops at the first selection error.
func Table(f Family, arch Arch, sizes []uintptr) ([]Row, error) {
	var shapes []Shape
	for _, size := range sizes {
		shapes = append(shapes, Shape{Size: size})
		switch size {
		case 4:
			shapes = append(shapes, Shape{Size: 4, Float: true})
		case 8:
			shapes = append(shapes,
				Shape{Size: 8, Wide: true},
				Shape{Size: 8, Float: true, Wide: true})
		}
	}

	rows := make([]Row, 0, len(shapes))
	for _, s := range shapes {
		plain, err := SelectFor(f, s, arch, false)
		if err != nil {
			return nil, err
		}
		super, err := SelectFor(f, s, arch, true)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Shape: s, Plain: plain, Super: super})
	}
	return rows, nil
}

// DefaultSizes are the return sizes worth checking against every rule.
var DefaultSizes = []uintptr{0, 1, 2, 4, 8, 16, 17, 32}
