// scenetool is a CLI utility for inspecting VPET scene distribution.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/docopt/docopt-go"

	"github.com/Faultbox/vpet-bridge/internal/host"
	"github.com/Faultbox/vpet-bridge/internal/network"
	"github.com/Faultbox/vpet-bridge/internal/serializer"
	"github.com/Faultbox/vpet-bridge/pkg/formats"
)

const version = "0.1.0"

const usage = `scenetool - VPET scene distribution utility

Usage:
  scenetool pull <addr> [--out=<dir>] [--timeout=<dur>]
  scenetool info <addr> [--timeout=<dur>]
  scenetool serialize <scene> [--out=<dir>] [--client-id=<id>]
  scenetool -h | --help
  scenetool --version

Options:
  --out=<dir>        Directory the blobs are written to [default: .].
  --timeout=<dur>    Per-request timeout [default: 5s].
  --client-id=<id>   Sender id written into the header [default: 0].
  -h --help          Show this screen.
  --version          Show version.

Examples:
  scenetool pull 127.0.0.1:5565 --out=./scene
  scenetool info tcp://10.0.0.4:5565
  scenetool serialize scene.yaml --out=./scene`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fatal(err)
	}

	switch {
	case opts["pull"].(bool):
		err = cmdPull(opts)
	case opts["info"].(bool):
		err = cmdInfo(opts)
	case opts["serialize"].(bool):
		err = cmdSerialize(opts)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func cmdPull(opts docopt.Opts) error {
	blobs, err := pull(opts)
	if err != nil {
		return err
	}
	out, _ := opts.String("--out")
	return writeBlobs(out, blobs)
}

func cmdInfo(opts docopt.Opts) error {
	blobs, err := pull(opts)
	if err != nil {
		return err
	}
	printSizes(blobs)
	fmt.Println()
	return describe(blobs)
}

func cmdSerialize(opts docopt.Opts) error {
	path, _ := opts.String("<scene>")
	id, err := opts.Int("--client-id")
	if err != nil {
		return fmt.Errorf("--client-id: %w", err)
	}
	if id < 0 || id > 255 {
		return fmt.Errorf("--client-id %d out of range 0-255", id)
	}

	snap, err := host.LoadFile(path)
	if err != nil {
		return err
	}
	res, err := serializer.Serialize(context.Background(), snap, serializer.Options{
		ClientID:             uint8(id),
		FrameRate:            60,
		LightIntensityFactor: 1,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Objects: %d (%d editable)\n", res.ObjectCount, len(res.Editable))
	out, _ := opts.String("--out")
	return writeBlobs(out, res.Blobs.Table())
}

func pull(opts docopt.Opts) (map[string][]byte, error) {
	addr, _ := opts.String("<addr>")
	raw, _ := opts.String("--timeout")
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("--timeout: %w", err)
	}
	if !strings.Contains(addr, "://") {
		addr = "tcp://" + addr
	}

	ctx := context.Background()
	req, err := network.DialRequester(ctx, addr, timeout)
	if err != nil {
		return nil, err
	}
	defer req.Close()

	return req.Pull(ctx, serializer.Commands)
}

func writeBlobs(dir string, blobs map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, cmd := range serializer.Commands {
		path := filepath.Join(dir, cmd+".bin")
		if err := os.WriteFile(path, blobs[cmd], 0o644); err != nil {
			return err
		}
	}
	printSizes(blobs)
	fmt.Printf("\nWrote %d blobs to %s\n", len(serializer.Commands), dir)
	return nil
}

func printSizes(blobs map[string][]byte) {
	fmt.Printf("%-12s %10s  %s\n", "Blob", "Bytes", "xxhash")
	total := 0
	for _, cmd := range serializer.Commands {
		b := blobs[cmd]
		total += len(b)
		fmt.Printf("%-12s %10d  %016x\n", cmd, len(b), xxhash.Sum64(b))
	}
	fmt.Printf("%-12s %10d\n", "total", total)
}

func describe(blobs map[string][]byte) error {
	hdr, err := formats.DecodeHeader(blobs[serializer.CmdHeader])
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	nodes, err := formats.DecodeNodes(blobs[serializer.CmdNodes])
	if err != nil {
		return fmt.Errorf("nodes: %w", err)
	}
	geos, err := formats.DecodeGeometries(blobs[serializer.CmdObjects])
	if err != nil {
		return fmt.Errorf("objects: %w", err)
	}
	mats, err := formats.DecodeMaterials(blobs[serializer.CmdMaterials])
	if err != nil {
		return fmt.Errorf("materials: %w", err)
	}
	texs, err := formats.DecodeTextures(blobs[serializer.CmdTextures])
	if err != nil {
		return fmt.Errorf("textures: %w", err)
	}
	chars, err := formats.DecodeCharacters(blobs[serializer.CmdCharacters])
	if err != nil {
		return fmt.Errorf("characters: %w", err)
	}

	fmt.Printf("Sender ID:   %d\n", hdr.SenderID)
	fmt.Printf("Frame rate:  %d\n", hdr.FrameRate)
	fmt.Printf("Light scale: %g\n", hdr.LightIntensityFactor)
	fmt.Printf("Nodes:       %d\n", len(nodes))
	fmt.Printf("Geometries:  %d\n", len(geos))
	fmt.Printf("Materials:   %d\n", len(mats))
	fmt.Printf("Textures:    %d\n", len(texs))
	fmt.Printf("Characters:  %d\n", len(chars))

	byType := make(map[string]int)
	editable := 0
	for _, n := range nodes {
		byType[n.Type.String()]++
		if n.Editable {
			editable++
		}
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Printf("\nNode types (%d editable):\n", editable)
	for _, t := range types {
		fmt.Printf("  %-10s %d\n", t, byType[t])
	}
	return nil
}
