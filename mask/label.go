package mask

// Connectivity selects which neighbours join pixels into one object.
type Connectivity int

const (
	// Connectivity8 joins pixels that touch by edge or corner. It is the default
	// and matches how the competition metric labels nuclei.
	Connectivity8 Connectivity = 8
	// Connectivity4 joins pixels that share an edge only.
	Connectivity4 Connectivity = 4
)

var (
	neighbours4 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	neighbours8 = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func (c Connectivity) offsets() [][2]int {
	if c == Connectivity4 {
		return neighbours4
	}
	return neighbours8
}

// Labeled is a label map derived from a Mask. Labels are 0 for background and
// 1..Count for objects with no gaps.
type Labeled struct {
	Height int
	Width  int
	Count  int
	Labels []int
}

// Label assigns a distinct positive id to every connected foreground region of m.
// Ids follow raster order of each region's first pixel, so the result is
// deterministic for a given mask and connectivity.
func Label(m *Mask, conn Connectivity) *Labeled {
	w, h := m.Width, m.Height
	l := &Labeled{
		Height: h,
		Width:  w,
		Labels: make([]int, w*h),
	}
	dirs := conn.offsets()
	var queue []int

	for start, fg := range m.Pix {
		if !fg || l.Labels[start] != 0 {
			continue
		}
		l.Count++
		id := l.Count
		l.Labels[start] = id
		queue = append(queue[:0], start)

		for k := 0; k < len(queue); k++ {
			cx, cy := queue[k]%w, queue[k]/w
			for _, d := range dirs {
				nx, ny := cx+d[0], cy+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				ni := ny*w + nx
				if m.Pix[ni] && l.Labels[ni] == 0 {
					l.Labels[ni] = id
					queue = append(queue, ni)
				}
			}
		}
	}

	return l
}

// Areas returns the pixel count of each object indexed by label; index 0 holds
// the background area.
func (l *Labeled) Areas() []int {
	areas := make([]int, l.Count+1)
	for _, id := range l.Labels {
		if id >= 0 && id <= l.Count {
			areas[id]++
		}
	}
	return areas
}

// Object returns a mask containing only the object with the given label.
func (l *Labeled) Object(id int) *Mask {
	m := New(l.Height, l.Width)
	for i, v := range l.Labels {
		m.Pix[i] = v == id
	}
	return m
}
