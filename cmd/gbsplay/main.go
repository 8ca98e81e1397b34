// Package main provides the gbsplay CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/fenwick/gbsplay/internal/apu"
	"github.com/fenwick/gbsplay/internal/driver"
	"github.com/fenwick/gbsplay/internal/gbs"
	"github.com/fenwick/gbsplay/internal/memory"
)

// sampleRate is the negotiated audio output rate in Hz.
const sampleRate = 48000

// ErrSongIndexOutOfRange indicates a requested song index beyond the
// header's song count.
var ErrSongIndexOutOfRange = errors.New("gbsplay: song index out of range")

// CLI is the root command structure.
type CLI struct {
	Verbose bool    `short:"v" help:"Enable debug logging."`
	Info    InfoCmd `cmd:"" help:"Print GBS header fields without starting audio."`
	Play    PlayCmd `cmd:"" default:"withargs" help:"Play a song from a GBS file."`
}

// InfoCmd displays GBS header information.
type InfoCmd struct {
	File string `arg:"" type:"existingfile" help:"Path to the .gbs file to inspect."`
}

// Run executes the info command.
func (c *InfoCmd) Run() error {
	header, _, err := loadGBS(c.File)
	if err != nil {
		return err
	}

	fmt.Printf("Title:      %s\n", header.Title)
	fmt.Printf("Author:     %s\n", header.Author)
	fmt.Printf("Copyright:  %s\n", header.Copyright)
	fmt.Printf("Songs:      %d\n", header.SongCount)
	fmt.Printf("Start song: %d\n", header.StartSong)
	fmt.Printf("Load addr:  0x%04X\n", header.LoadAddr)
	fmt.Printf("Init addr:  0x%04X\n", header.InitAddr)
	fmt.Printf("Play addr:  0x%04X\n", header.PlayAddr)
	return nil
}

// PlayCmd plays a song from a GBS file. SONG_INDEX is 0-based and defaults
// to the header's starting song; SECONDS defaults to playing until
// interrupted.
type PlayCmd struct {
	File    string `arg:"" type:"existingfile" help:"Path to the .gbs file to play."`
	Song    *int   `arg:"" optional:"" help:"0-based song index (default: header's starting song)."`
	Seconds *int   `arg:"" optional:"" help:"Seconds to play (default: until interrupted)."`
}

// Run executes the play command.
func (c *PlayCmd) Run() error {
	header, banks, err := loadGBS(c.File)
	if err != nil {
		return err
	}

	songIndex := header.StartSong
	if c.Song != nil {
		if *c.Song < 0 || *c.Song >= int(header.SongCount) {
			return fmt.Errorf("%w: %d (song count %d)", ErrSongIndexOutOfRange, *c.Song, header.SongCount)
		}
		songIndex = uint8(*c.Song)
	}

	bus := memory.NewBus()
	bus.LoadBanks(banks)
	audioDevice := apu.New()
	bus.SetAudioDevice(audioDevice)

	player := driver.New(bus, audioDevice, header, slog.Default())
	firstFrame := player.RunInit(songIndex)

	output, err := newOtoPlayer(sampleRate, player)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	output.seed(firstFrame)
	output.Start()
	defer output.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Seconds != nil {
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(*c.Seconds) * time.Second):
		}
		return nil
	}

	<-ctx.Done()
	return nil
}

// loadGBS reads, parses, and bank-slices a GBS file.
func loadGBS(path string) (*gbs.Header, [][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read gbs file: %w", err)
	}

	header, err := gbs.ParseHeader(data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse gbs header: %w", err)
	}

	banks, err := header.Load(data)
	if err != nil {
		return nil, nil, fmt.Errorf("load gbs banks: %w", err)
	}

	return header, banks, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("gbsplay"),
		kong.Description("A Game Boy Sound System file player."),
		kong.UsageOnError(),
	)

	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	kctx.FatalIfErrorf(kctx.Run())
}
