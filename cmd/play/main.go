package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/exp/rand"

	"snakeai/internal/config"
	"snakeai/internal/env"
	"snakeai/internal/logging"
	"snakeai/internal/nn"
	"snakeai/internal/train"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "path to config file")
	checkpointPath := flag.String("checkpoint", "runs/checkpoints/best.json", "path to checkpoint JSON")
	replayPath := flag.String("replay", "", "play back a recorded replay instead of a checkpoint")
	seed := flag.Uint64("seed", 12345, "random seed for food placement")
	delay := flag.Int("delay", 100, "delay between frames in milliseconds")
	noDisplay := flag.Bool("no-display", false, "run without display (just print stats)")
	noTimeout := flag.Bool("no-timeout", false, "disable tick cap (play until death)")
	flag.Parse()

	frameDelay := time.Duration(*delay) * time.Millisecond

	if *replayPath != "" {
		if err := playReplay(*replayPath, frameDelay, *noDisplay); err != nil {
			fmt.Fprintf(os.Stderr, "Error playing replay: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	maxTicks := cfg.Env.MaxTicksPerEpisode
	if *noTimeout {
		maxTicks = 0
	}

	ckpt, err := logging.LoadCheckpoint(*checkpointPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading checkpoint: %v\n", err)
		os.Exit(1)
	}
	vf, err := train.NewNetwork(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating network: %v\n", err)
		os.Exit(1)
	}
	if err := vf.Load(ckpt.Params); err != nil {
		if errors.Is(err, nn.ErrIncompatibleArchitecture) {
			fmt.Fprintf(os.Stderr, "Checkpoint was trained with obs_dim=%d hidden=%d/%d; config expects obs_dim=%d\n",
				ckpt.ObsDim, ckpt.Hidden1, ckpt.Hidden2, cfg.ObsDim())
		}
		fmt.Fprintf(os.Stderr, "Error loading parameters: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded checkpoint from run %s, episode %d (step %d, score=%.3f)\n",
		ckpt.RunID, ckpt.Episode, ckpt.GlobalStep, ckpt.Score)
	fmt.Printf("Config: %s, Seed: %d\n", *configPath, *seed)
	fmt.Println("Press Ctrl+C to exit")
	fmt.Println()

	world, err := env.NewWorld(cfg.World(), rand.New(rand.NewSource(*seed)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating world: %v\n", err)
		os.Exit(1)
	}
	runner := train.NewRunner(world, vf, maxTicks)
	display := NewDisplay(world.Board().Width, world.Board().Height)

	action := env.Action(-1)
	for world.Active() {
		if !*noDisplay {
			display.Render(world, action)
			time.Sleep(frameDelay)
		}
		var err error
		if action, _, err = runner.Tick(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if !*noDisplay {
		display.Render(world, action)
	}
	printStats(world.Stats(*seed))
}

func playReplay(path string, frameDelay time.Duration, noDisplay bool) error {
	replay, err := env.LoadReplay(path)
	if err != nil {
		return err
	}
	world, err := replay.Playback()
	if err != nil {
		return err
	}
	fmt.Printf("Replay seed %d, %d actions\n", replay.Seed, len(replay.Actions))

	display := NewDisplay(world.Board().Width, world.Board().Height)
	last := env.Action(-1)
	for _, a := range replay.Actions {
		if !world.Active() {
			break
		}
		if !noDisplay {
			display.Render(world, last)
			time.Sleep(frameDelay)
		}
		if _, _, _, err := world.Step(a); err != nil {
			return err
		}
		last = a
	}
	if world.Active() {
		world.Kill(replay.FinalStats.Death)
	}
	if !noDisplay {
		display.Render(world, last)
	}
	printStats(world.Stats(replay.Seed))
	return nil
}

func printStats(stats env.EpisodeStats) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════")
	fmt.Printf("  Game Over! Death: %s\n", stats.Death)
	fmt.Printf("  Ticks: %d, Fruits: %d, Length: %d\n", stats.Ticks, stats.Fruits, stats.Length)
	fmt.Printf("  Reward: %.2f\n", stats.Reward)
	fmt.Println("═══════════════════════════════════")
}

// Display handles terminal rendering
type Display struct {
	width  int
	height int
}

// NewDisplay creates a new display
func NewDisplay(width, height int) *Display {
	return &Display{width: width, height: height}
}

// Render draws the world to the terminal
func (d *Display) Render(w *env.World, action env.Action) {
	clearScreen()

	grid := make([][]rune, d.height)
	for y := 0; y < d.height; y++ {
		grid[y] = make([]rune, d.width)
		for x := 0; x < d.width; x++ {
			grid[y][x] = '·'
		}
	}

	food := w.Food()
	grid[food.Y][food.X] = '●'

	snake := w.Snake()
	for _, p := range snake.Body[1:] {
		grid[p.Y][p.X] = '█'
	}
	if snake.Len() > 1 {
		tail := snake.Tail()
		grid[tail.Y][tail.X] = '▒'
	}
	head := snake.Head()
	grid[head.Y][head.X] = headRune(snake.Heading)

	fmt.Print("┌")
	for x := 0; x < d.width; x++ {
		fmt.Print("──")
	}
	fmt.Println("┐")

	for y := 0; y < d.height; y++ {
		fmt.Print("│")
		for x := 0; x < d.width; x++ {
			fmt.Printf(" %c", grid[y][x])
		}
		fmt.Println("│")
	}

	fmt.Print("└")
	for x := 0; x < d.width; x++ {
		fmt.Print("──")
	}
	fmt.Println("┘")

	actionDisplay := "---"
	if action.Valid() {
		actionDisplay = action.String()
	}
	fmt.Printf("  Tick: %3d | Fruits: %d | Length: %d | Action: %s\n",
		w.Tick(), w.Fruits(), w.Snake().Len(), actionDisplay)

	if !w.Active() {
		fmt.Printf("  DEAD: %s\n", w.Stats(0).Death)
	}
}

func headRune(h env.Heading) rune {
	switch h {
	case env.HeadingUp:
		return '▲'
	case env.HeadingRight:
		return '▶'
	case env.HeadingDown:
		return '▼'
	case env.HeadingLeft:
		return '◀'
	}
	return 'O'
}

func clearScreen() {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/c", "cls")
	} else {
		cmd = exec.Command("clear")
	}
	cmd.Stdout = os.Stdout
	cmd.Run()
}
