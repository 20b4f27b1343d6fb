// Desktop compiles a source file and runs it in a window. print() output
// scrolls in a text console; when the program calls scan(), type a number
// and press Enter. F5 saves the machine to <program>.snapshot and -resume
// continues from that file.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"strconv"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"stackc/pkg/config"
	"stackc/pkg/driver"
	"stackc/pkg/grid"
	"stackc/pkg/logging"
	"stackc/pkg/vm"
)

const (
	cols       = 64
	rows       = 24
	charWidth  = 7
	charHeight = 13
	margin     = 4

	// stepsPerFrame bounds how much of the program runs between redraws.
	stepsPerFrame = 20000
)

var (
	background = color.RGBA{0x10, 0x14, 0x18, 0xff}
	foreground = color.RGBA{0xd0, 0xd8, 0xe0, 0xff}
)

type Game struct {
	vm      *vm.Machine
	console *grid.Console
	face    text.Face

	input    []rune
	finished bool

	// snapshotPath is where F5 hibernates the machine; empty disables it.
	snapshotPath string
}

func NewGame(m *vm.Machine) *Game {
	console := grid.NewConsole(cols, rows)
	m.Output = console
	return &Game{
		vm:      m,
		console: console,
		face:    text.NewGoXFace(basicfont.Face7x13),
	}
}

// typeRune accepts characters that can make up a number while the machine
// waits for input.
func (g *Game) typeRune(r rune) {
	if !g.vm.Waiting {
		return
	}
	switch {
	case r >= '0' && r <= '9', r == '.', r == '-' && len(g.input) == 0:
		g.input = append(g.input, r)
		fmt.Fprintf(g.console, "%c", r)
	}
}

func (g *Game) backspace() {
	if len(g.input) == 0 {
		return
	}
	g.input = g.input[:len(g.input)-1]
	fmt.Fprint(g.console, "\b")
}

// submit hands the typed number to the machine. Anything that does not
// parse is discarded and the prompt stays open.
func (g *Game) submit() {
	if !g.vm.Waiting || len(g.input) == 0 {
		return
	}
	v, err := strconv.ParseFloat(string(g.input), 64)
	for range g.input {
		fmt.Fprint(g.console, "\b")
	}
	g.input = g.input[:0]
	if err != nil {
		return
	}
	fmt.Fprintf(g.console, "%s\n", strconv.FormatFloat(v, 'f', -1, 64))
	g.vm.PushInput(v)
}

// save hibernates the machine to snapshotPath and reports the outcome on
// the console.
func (g *Game) save() {
	if g.snapshotPath == "" {
		return
	}
	if err := g.vm.HibernateToFile(g.snapshotPath); err != nil {
		fmt.Fprintf(g.console, "\nsnapshot failed: %v\n", err)
		return
	}
	fmt.Fprintf(g.console, "\n[saved %s]\n", g.snapshotPath)
}

// step runs the machine for at most n instructions.
func (g *Game) step(n int) {
	for i := 0; i < n && !g.finished; i++ {
		if g.vm.Halted || g.vm.Waiting {
			break
		}
		if err := g.vm.Step(); err != nil {
			fmt.Fprintf(g.console, "\nerror: %v\n", err)
			g.finished = true
		}
	}
	if g.vm.Halted && !g.finished {
		g.finished = true
		fmt.Fprintf(g.console, "\n[halted after %d steps]\n", g.vm.Steps)
	}
}

func (g *Game) Update() error {
	for _, r := range ebiten.AppendInputChars(nil) {
		g.typeRune(r)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		g.backspace()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		g.submit()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		g.save()
	}
	g.step(stepsPerFrame)
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	for i, line := range g.console.Lines() {
		if line == "" {
			continue
		}
		_, y := grid.GetGridCoords(i*cols, cols)
		op := &text.DrawOptions{}
		op.GeoM.Translate(margin, float64(margin+y*charHeight))
		op.ColorScale.ScaleWithColor(foreground)
		text.Draw(screen, line, g.face, op)
	}
	if g.vm.Waiting && !g.finished {
		title := "waiting for input: type a number and press Enter"
		op := &text.DrawOptions{}
		op.GeoM.Translate(margin, float64(margin+rows*charHeight))
		op.ColorScale.ScaleWithColor(color.RGBA{0x80, 0xc0, 0xff, 0xff})
		text.Draw(screen, title, g.face, op)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cols*charWidth + 2*margin, (rows+1)*charHeight + 2*margin
}

func main() {
	cfgFile := flag.String("config", "", "config file path")
	showAsm := flag.Bool("show-asm", false, "print the generated assembly to stdout")
	resume := flag.Bool("resume", false, "continue from <program>.snapshot")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [-config file] [-show-asm] [-resume] <program>")
		os.Exit(2)
	}

	cfg, err := config.LoadOrDefault(*cfgFile)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatal(err)
	}
	d := driver.New(cfg, logger, nil)

	path := flag.Arg(0)
	if *showAsm && !driver.IsAssembly(path) {
		res, err := d.CompileFile(context.Background(), path)
		if err != nil {
			log.Fatalf("Compilation failed: %v", err)
		}
		fmt.Print(res.Assembly)
	}
	program, err := d.Load(context.Background(), path)
	if err != nil {
		log.Fatalf("Loading %s failed: %v", path, err)
	}

	m := d.NewMachine(program)
	snapshot := path + ".snapshot"
	if *resume {
		if err := m.RestoreFromFile(snapshot); err != nil {
			log.Fatalf("Restoring %s failed: %v", snapshot, err)
		}
	}
	game := NewGame(m)
	game.snapshotPath = snapshot
	w, h := game.Layout(0, 0)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(w*2, h*2)
	ebiten.SetWindowTitle("stackc - " + path)
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
