package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-aliabbas/birthday-wisher/internal/config"
	"github.com/m-aliabbas/birthday-wisher/internal/logging"
	"github.com/m-aliabbas/birthday-wisher/internal/processor"
	"github.com/m-aliabbas/birthday-wisher/internal/server"
	"github.com/m-aliabbas/birthday-wisher/pkg/videoprocessor"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "birthday-wisher",
		Short: "Render personalized birthday greeting videos",
		Long: `birthday-wisher composites a customer photo into a green-screen template video
and wraps it with a generated intro and outro.

Examples:
  # Render a greeting
  birthday-wisher render --template templates/balloons --image alice.jpg --out alice.mp4 --name Alice

  # Show what would be rendered without encoding
  birthday-wisher plan --template templates/balloons --image alice.jpg`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logging.Init(verbose)
		},
	}

	renderCmd = &cobra.Command{
		Use:   "render",
		Short: "Render a greeting video",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := renderOptions(cmd)
			out, _ := cmd.Flags().GetString("out")
			name, _ := cmd.Flags().GetString("name")
			opts.OutputPath = out
			opts.CustomerName = name

			path, err := videoprocessor.Render(opts)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}

	planCmd = &cobra.Command{
		Use:   "plan",
		Short: "Print the composition plan and ffmpeg arguments without encoding",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := renderOptions(cmd)
			opts.OutputPath, _ = cmd.Flags().GetString("out")

			result, err := videoprocessor.PlanRender(opts)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	segmentCmd = &cobra.Command{
		Use:       "segment intro|outro",
		Short:     "Render only the intro or outro clip",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(processor.SegmentIntro), string(processor.SegmentOutro)},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &videoprocessor.SegmentOptions{Kind: processor.SegmentKind(args[0])}
			opts.CustomerName, _ = cmd.Flags().GetString("name")
			opts.TemplateVideo, _ = cmd.Flags().GetString("template-video")
			opts.OutputPath, _ = cmd.Flags().GetString("out")
			opts.ConfigPath, _ = cmd.Flags().GetString("config")

			path, err := videoprocessor.RenderSegment(opts)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}

	templatesCmd = &cobra.Command{
		Use:   "templates",
		Short: "List available templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			if root == "" {
				settings, err := loadSettings(cmd)
				if err != nil {
					return err
				}
				root = settings.TemplatesDir
			}

			ids, err := videoprocessor.ListTemplates(root)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect <template-dir>",
		Short: "Print a template's resolved config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := videoprocessor.InspectTemplate(args[0])
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}

	probeCmd = &cobra.Command{
		Use:   "probe <media-file>",
		Short: "Print the metadata the planner sees for a video or image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := videoprocessor.GetVideoMetadata(args[0])
			if err != nil {
				return err
			}
			return printJSON(md)
		},
	}

	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Check that ffmpeg and ffprobe are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("write-config"); path != "" {
				if err := settings.Save(path); err != nil {
					return err
				}
				fmt.Printf("settings written to %s\n", path)
			}
			caps, err := videoprocessor.CheckFFmpeg(settings.FFmpegPath)
			if err != nil {
				return err
			}
			fmt.Printf("ffmpeg:  %s\nffprobe: %s\n%s\n", caps.FFmpegPath, caps.FFprobePath, caps.Version)
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve template management and rendering over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
				settings.Server.Listen = listen
			}
			if root, _ := cmd.Flags().GetString("root"); root != "" {
				settings.TemplatesDir = root
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Deps{
				Settings: settings,
				Logger:   logging.New(nil),
			})
			return srv.ListenAndServe(ctx, settings.Server.Listen)
		},
	}
)

func renderOptions(cmd *cobra.Command) *videoprocessor.RenderOptions {
	opts := &videoprocessor.RenderOptions{}
	opts.TemplateDir, _ = cmd.Flags().GetString("template")
	opts.ImagePath, _ = cmd.Flags().GetString("image")
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	opts.Verbose, _ = cmd.Flags().GetBool("verbose")
	return opts
}

func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(v))
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("config", "", fmt.Sprintf("Settings file (default ./%s)", config.DefaultSettingsFile))

	// Render and plan flags
	for _, cmd := range []*cobra.Command{renderCmd, planCmd} {
		cmd.Flags().StringP("template", "t", "", "Template directory")
		cmd.Flags().StringP("image", "i", "", "Customer photo")
		cmd.Flags().StringP("out", "o", "", "Output video path")
		cmd.MarkFlagRequired("template")
		cmd.MarkFlagRequired("image")
	}
	renderCmd.Flags().StringP("name", "n", "", "Customer name shown in the intro")
	renderCmd.MarkFlagRequired("out")

	segmentCmd.Flags().StringP("name", "n", "", "Customer name shown in the clip")
	segmentCmd.Flags().String("template-video", "", "Template video whose size the clip should match")
	segmentCmd.Flags().StringP("out", "o", "", "Output video path")
	segmentCmd.MarkFlagRequired("out")

	doctorCmd.Flags().String("write-config", "", "Write the effective settings to this file before checking")

	templatesCmd.Flags().String("root", "", "Templates root directory (default from settings)")

	serveCmd.Flags().String("listen", "", "Listen address (default from settings)")
	serveCmd.Flags().String("root", "", "Templates root directory (default from settings)")

	rootCmd.AddCommand(renderCmd, planCmd, segmentCmd, templatesCmd, inspectCmd, probeCmd, doctorCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger := logging.WithComponent("cli")
		logger.Error().Msg(err.Error())
		os.Exit(1)
	}
}
