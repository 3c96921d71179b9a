package main

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/glizzus/livesfx/internal/app"
	"github.com/glizzus/livesfx/internal/config"
	"github.com/glizzus/livesfx/internal/datalayer"
	"github.com/glizzus/livesfx/internal/library"
	"github.com/glizzus/livesfx/internal/mixer"
	"github.com/glizzus/livesfx/internal/settings"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// withStore opens the configured settings store for the duration of action.
func withStore(action func(c *cli.Context, store settings.Store) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.NewSettingsConfigFromEnv()
		if err != nil {
			return cli.Exit("Failed to load settings config: "+err.Error(), 1)
		}
		store, closeStore, err := app.OpenSettingsStore(c.Context, cfg)
		if err != nil {
			return cli.Exit("Failed to open settings store: "+err.Error(), 1)
		}
		defer closeStore()
		return action(c, store)
	}
}

// update applies mutate to the stored policy and prints the result.
func update(c *cli.Context, store settings.Store, mutate func(p *settings.Policy) error) error {
	p, err := settings.Update(c.Context, store, mutate)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return printPolicy(p)
}

func printPolicy(p *settings.Policy) error {
	out, err := yaml.Marshal(settings.NewDocument(p))
	if err != nil {
		return cli.Exit("Failed to encode settings: "+err.Error(), 1)
	}
	fmt.Print(string(out))
	return nil
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return cli.Exit("Usage: "+c.App.Name+" "+c.Command.Name+" "+usage, 1)
	}
	return nil
}

func knownEvent(event string) {
	known := []string{
		settings.EventLike, settings.EventGift1, settings.EventGift2, settings.EventGift3,
		settings.EventMessage, settings.EventSuperChat, settings.EventGuard,
		settings.EventEnter, settings.EventFollow,
	}
	if !slices.Contains(known, event) {
		log.Printf("Warning: %q is not an event the service triggers", event)
	}
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	cliApp := &cli.App{
		Name:        "livesfx-cli",
		Description: "Edit the livesfx settings store and manage sound files",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the current settings",
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					p, err := store.Load(c.Context)
					if err != nil {
						return cli.Exit("Failed to load settings: "+err.Error(), 1)
					}
					return printPolicy(p)
				}),
			},
			{
				Name:      "map",
				Usage:     "Add sound files to an event",
				ArgsUsage: "<event> <file>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "replace",
						Usage: "Replace the event's files instead of appending",
					},
				},
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					if c.NArg() < 2 {
						return cli.Exit("Usage: livesfx-cli map <event> <file>...", 1)
					}
					event, files := c.Args().First(), c.Args().Tail()
					knownEvent(event)
					return update(c, store, func(p *settings.Policy) error {
						if c.Bool("replace") {
							p.Sounds[event] = nil
						}
						for _, f := range files {
							if !slices.Contains(p.Sounds[event], f) {
								p.Sounds[event] = append(p.Sounds[event], f)
							}
						}
						return nil
					})
				}),
			},
			{
				Name:      "unmap",
				Usage:     "Remove a sound file from an event",
				ArgsUsage: "<event> <file>",
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					if err := requireArgs(c, 2, "<event> <file>"); err != nil {
						return err
					}
					event, file := c.Args().Get(0), c.Args().Get(1)
					return update(c, store, func(p *settings.Policy) error {
						files := p.Sounds[event]
						i := slices.Index(files, file)
						if i < 0 {
							return cli.Exit(fmt.Sprintf("%s is not mapped to %s", file, event), 1)
						}
						p.Sounds[event] = slices.Delete(files, i, i+1)
						return nil
					})
				}),
			},
			{
				Name:      "volume",
				Usage:     "Set the volume of a sound file in percent",
				ArgsUsage: "<file> <0-100>",
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					if err := requireArgs(c, 2, "<file> <0-100>"); err != nil {
						return err
					}
					percent, err := strconv.Atoi(c.Args().Get(1))
					if err != nil || percent < 0 || percent > 100 {
						return cli.Exit("Volume must be an integer between 0 and 100", 1)
					}
					return update(c, store, func(p *settings.Policy) error {
						p.Volumes[c.Args().Get(0)] = percent
						return nil
					})
				}),
			},
			{
				Name:      "probability",
				Usage:     "Set the chance that a gated event plays",
				ArgsUsage: "<event> <0-1>",
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					if err := requireArgs(c, 2, "<event> <0-1>"); err != nil {
						return err
					}
					prob, err := strconv.ParseFloat(c.Args().Get(1), 64)
					if err != nil || prob < 0 || prob > 1 {
						return cli.Exit("Probability must be a number between 0 and 1", 1)
					}
					event := c.Args().Get(0)
					knownEvent(event)
					return update(c, store, func(p *settings.Policy) error {
						p.Probabilities[event] = prob
						return nil
					})
				}),
			},
			{
				Name:      "multi-like",
				Usage:     "Turn repeated like sounds on or off",
				ArgsUsage: "<on|off>",
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					if err := requireArgs(c, 1, "<on|off>"); err != nil {
						return err
					}
					var enabled bool
					switch c.Args().First() {
					case "on", "true":
						enabled = true
					case "off", "false":
						enabled = false
					default:
						return cli.Exit("Expected on or off", 1)
					}
					return update(c, store, func(p *settings.Policy) error {
						p.MultiLike = enabled
						return nil
					})
				}),
			},
			{
				Name:      "code",
				Usage:     "Set the id code used to start the live session",
				ArgsUsage: "<id-code>",
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					if err := requireArgs(c, 1, "<id-code>"); err != nil {
						return err
					}
					return update(c, store, func(p *settings.Policy) error {
						p.IDCode = c.Args().First()
						return nil
					})
				}),
			},
			{
				Name:      "upload",
				Usage:     "Check that a sound file decodes and upload it to blob storage",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Name to store the file under (defaults to the file's base name)",
					},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1, "<path>"); err != nil {
						return err
					}
					return upload(c.Context, c.Args().First(), c.String("name"))
				},
			},
			{
				Name:  "sounds",
				Usage: "List the sound files the configured source holds and flag mapped files that are missing",
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					return listSounds(c.Context, store)
				}),
			},
			{
				Name:      "play",
				Usage:     "Play one sound for an event on the local output device",
				ArgsUsage: "<event>",
				Action: withStore(func(c *cli.Context, store settings.Store) error {
					if err := requireArgs(c, 1, "<event>"); err != nil {
						return err
					}
					return play(c.Context, store, c.Args().First())
				}),
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}

func upload(ctx context.Context, path, name string) error {
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return cli.Exit("Failed to load audio config: "+err.Error(), 1)
	}
	if name == "" {
		name = filepath.Base(path)
	}

	loader := library.NewLoader(library.NewDirSource(filepath.Dir(path)), audioConfig.SampleRate)
	samples, err := loader.Samples(ctx, filepath.Base(path))
	if err != nil {
		return cli.Exit("Refusing to upload: "+err.Error(), 1)
	}

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit("Failed to open file: "+err.Error(), 1)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return cli.Exit("Failed to stat file: "+err.Error(), 1)
	}

	storage, err := app.OpenBlobStorage(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	source := library.NewBlobSource(storage, audioConfig.SoundPrefix)

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := storage.Put(ctx, source.Key(name), f, datalayer.PutOptions{
		Size:        info.Size(),
		ContentType: contentType,
	}); err != nil {
		return cli.Exit("Failed to upload: "+err.Error(), 1)
	}

	log.Printf("Uploaded %s as %s (%.2fs of audio)", path, source.Key(name),
		float64(len(samples))/float64(audioConfig.SampleRate))
	return nil
}

func listSounds(ctx context.Context, store settings.Store) error {
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return cli.Exit("Failed to load audio config: "+err.Error(), 1)
	}
	policy, err := store.Load(ctx)
	if err != nil {
		return cli.Exit("Failed to load settings: "+err.Error(), 1)
	}
	source, err := app.OpenSoundSource(ctx, audioConfig)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	names, err := source.Names(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	for _, name := range names {
		fmt.Println(name)
	}
	for _, event := range policy.Events() {
		for _, file := range policy.Files(event) {
			if !slices.Contains(names, file) {
				fmt.Printf("missing: %s (mapped to %s)\n", file, event)
			}
		}
	}
	return nil
}

func play(ctx context.Context, store settings.Store, event string) error {
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return cli.Exit("Failed to load audio config: "+err.Error(), 1)
	}
	policy, err := store.Load(ctx)
	if err != nil {
		return cli.Exit("Failed to load settings: "+err.Error(), 1)
	}
	source, err := app.OpenSoundSource(ctx, audioConfig)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	engine := mixer.NewEngine(audioConfig.MaxVoices)
	engine.SetCatalog(library.NewLoader(source, audioConfig.SampleRate).Load(ctx, policy))

	if err := mixer.StartSpeaker(engine, audioConfig.SampleRate); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer mixer.StopSpeaker()

	if !engine.Trigger(event, 1) {
		return cli.Exit("Nothing to play for "+event, 1)
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for engine.Active() > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
