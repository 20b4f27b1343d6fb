// Package grid is a fixed-size character grid used as a scrolling text
// console.
package grid

import "sync"

// GetGridCoords maps a linear cell index to its column and row.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Console is a cols×rows grid of runes written like a terminal: text wraps
// at the right edge and the grid scrolls up when the cursor passes the last
// row. It is safe for concurrent use.
type Console struct {
	mu     sync.Mutex
	cols   int
	rows   int
	cells  []rune
	cursor int
}

func NewConsole(cols, rows int) *Console {
	return &Console{cols: cols, rows: rows, cells: make([]rune, cols*rows)}
}

// Size returns the grid dimensions.
func (c *Console) Size() (cols, rows int) {
	return c.cols, c.rows
}

// Write implements io.Writer. '\n' moves to the start of the next row and
// '\b' erases the previous cell on the current row.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range string(p) {
		c.put(r)
	}
	return len(p), nil
}

func (c *Console) put(r rune) {
	switch r {
	case '\n':
		c.cursor += c.cols - c.cursor%c.cols
	case '\r':
		c.cursor -= c.cursor % c.cols
	case '\b':
		if c.cursor%c.cols > 0 {
			c.cursor--
			c.cells[c.cursor] = 0
		}
		return
	default:
		if c.cursor >= len(c.cells) {
			c.scroll()
		}
		c.cells[c.cursor] = r
		c.cursor++
		return
	}
	if c.cursor >= len(c.cells) {
		c.scroll()
	}
}

func (c *Console) scroll() {
	copy(c.cells, c.cells[c.cols:])
	clear(c.cells[len(c.cells)-c.cols:])
	c.cursor -= c.cols
}

// Cells returns a snapshot of the grid in row-major order; empty cells are 0.
func (c *Console) Cells() []rune {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]rune, len(c.cells))
	copy(out, c.cells)
	return out
}

// Lines returns each row as a string with trailing blanks removed.
func (c *Console) Lines() []string {
	cells := c.Cells()
	lines := make([]string, c.rows)
	for row := range lines {
		line := cells[row*c.cols : (row+1)*c.cols]
		end := len(line)
		for end > 0 && line[end-1] == 0 {
			end--
		}
		buf := make([]rune, end)
		for i, r := range line[:end] {
			if r == 0 {
				r = ' '
			}
			buf[i] = r
		}
		lines[row] = string(buf)
	}
	return lines
}
