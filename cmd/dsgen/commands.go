package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dsgen/internal/clean"
	cfgpkg "dsgen/internal/config"
	"dsgen/internal/diag"
	"dsgen/internal/generate"
	"dsgen/internal/progress"
	"dsgen/pkg/contract"
)

// errSetup 标记配置/装配阶段的失败，映射到退出码 3。
var errSetup = errors.New("setup failed")

type rootFlags struct {
	config     string
	projectDir string
	outputDir  string
	logLevel   string
	mode       string
	model      string
	endpoint   string
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:   "dsgen",
		Short: "把原始语料清洗切分并驱动生成端点产出训练数据集",
		// 错误由 main 统一映射退出码，不让 cobra 重复打印用法
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&rf.config, "config", "", "配置文件路径（JSON）；缺省读取 ./config.json（若存在）")
	pf.StringVar(&rf.projectDir, "project-dir", "", "项目目录（含 raw/ 子目录；覆盖配置）")
	pf.StringVar(&rf.logLevel, "log-level", "", "日志等级（覆盖配置）")

	root.AddCommand(newInitConfigCmd())
	root.AddCommand(newCleanCmd(&rf))
	root.AddCommand(newGenerateCmd(&rf))
	return root
}

// loadConfig 按 JSON < ENV < CLI 的优先级合成有效配置。
func loadConfig(rf *rootFlags) (cfgpkg.Config, error) {
	cfg := cfgpkg.Defaults()

	// JSON 配置（文件或 ENV: DSGEN_CONFIG_JSON）
	var cfgJSON []byte
	if s := os.Getenv("DSGEN_CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	path := rf.config
	if path == "" {
		path = os.Getenv("DSGEN_CONFIG_FILE")
	}
	// 默认读取工作目录下 config.json（若存在）
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" || len(cfgJSON) > 0 {
		base, err := cfgpkg.LoadJSON(path, cfgJSON)
		if err != nil {
			return cfg, fmt.Errorf("配置解析失败: %v: %w", err, errSetup)
		}
		cfg = cfgpkg.Merge(cfg, base)
	}

	// ENV 覆盖
	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, fmt.Errorf("环境变量解析失败: %v: %w", err, errSetup)
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	// CLI 覆盖
	var overCLI cfgpkg.Config
	overCLI.ProjectDir = rf.projectDir
	overCLI.OutputDir = rf.outputDir
	overCLI.Logging.Level = rf.logLevel
	overCLI.Mode = rf.mode
	overCLI.Model = rf.model
	overCLI.Endpoint.Client = rf.endpoint
	cfg = cfgpkg.Merge(cfg, overCLI)
	return cfg, nil
}

func newCleanCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "清洗 raw/ 下的原始文件并切分为训练段落",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			em := progress.NewEmitter(os.Stdout)
			cfg, err := loadConfig(rf)
			if err != nil {
				em.Error(err.Error(), false)
				return err
			}
			if err := cfgpkg.Validate(cfg); err != nil {
				em.Error(err.Error(), false)
				return fmt.Errorf("%v: %w", err, errSetup)
			}
			corrID := uuid.NewString()
			logger := diag.NewLogger(corrID, cfg.Logging.Level)
			runner := clean.NewRunner(&cfg.Clean, corrID, em, logger)
			if _, err := runner.Run(cmd.Context(), cfg.ProjectDir); err != nil {
				logger.Error().Err(err).Str("code", string(diag.Classify(err))).Msg("清洗失败")
				return err
			}
			return nil
		},
	}
}

func newGenerateCmd(rf *rootFlags) *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "逐段调用生成端点并产出 train/valid 数据集",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			em := progress.NewEmitter(os.Stdout)
			cfg, err := loadConfig(rf)
			if err != nil {
				em.Error(err.Error(), false)
				return err
			}
			if err := cfgpkg.ValidateGenerate(cfg); err != nil {
				em.Error(err.Error(), false)
				return fmt.Errorf("%v: %w", err, errSetup)
			}
			client, err := cfgpkg.AssembleGenClient(cfg)
			if err != nil {
				em.Error(err.Error(), false)
				return fmt.Errorf("%v: %w", err, errSetup)
			}
			corrID := uuid.NewString()
			logger := diag.NewLogger(corrID, cfg.Logging.Level)
			runner := generate.NewRunner(generate.Options{
				ProjectDir:      cfg.ProjectDir,
				OutputDir:       cfg.OutputDir,
				Model:           cfg.Model,
				Mode:            contract.Mode(cfg.Mode),
				Resume:          resume,
				MinSegmentChars: cfg.Clean.Segment.MinSegmentChars,
				Quality:         cfg.Quality,
			}, client, corrID, em, logger)
			if err := runner.Run(cmd.Context()); err != nil {
				logger.Error().Err(err).Str("code", string(diag.Classify(err))).Msg("生成失败")
				return err
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&resume, "resume", false, "从上次进度继续（按已有 train.jsonl 行数定位）")
	fl.StringVar(&rf.outputDir, "output-dir", "", "数据集输出目录（覆盖配置；默认 project_dir/dataset）")
	fl.StringVar(&rf.mode, "mode", "", "生成模式：qa/style/instruct/chat（覆盖配置）")
	fl.StringVar(&rf.model, "model", "", "模型名（覆盖配置）")
	fl.StringVar(&rf.endpoint, "endpoint", "", "生成端点实现名（覆盖配置）")
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在指定目录生成默认 config.json 与 .env 模板（不覆盖已存在文件）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("生成默认配置失败: %v: %w", err, errSetup)
			}
			if err := writeConfigTemplate(filepath.Join(dir, "config.json")); err != nil {
				return fmt.Errorf("生成默认配置失败: %v: %w", err, errSetup)
			}
			if err := writeDotEnvTemplate(filepath.Join(dir, ".env")); err != nil {
				fmt.Fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
			}
			return nil
		},
	}
}

// writeConfigTemplate 写默认配置模板；已存在则跳过。
func writeConfigTemplate(path string) error {
	b, err := json.MarshalIndent(cfgpkg.DefaultTemplateConfig(), "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// writeDotEnvTemplate 生成 .env 模板（已存在则跳过，不覆盖不合并）。
func writeDotEnvTemplate(path string) error {
	var b strings.Builder
	b.WriteString("# dsgen .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > JSON\n")
	b.WriteString("# 空值表示未设置；按需填写。\n\n")
	b.WriteString("# 配置来源（可二选一）\n")
	b.WriteString("DSGEN_CONFIG_FILE=\n")
	b.WriteString("DSGEN_CONFIG_JSON=\n\n")
	b.WriteString("# 运行参数覆盖\n")
	b.WriteString("DSGEN_PROJECT_DIR=\n")
	b.WriteString("DSGEN_OUTPUT_DIR=\n")
	b.WriteString("DSGEN_MODE=\n")
	b.WriteString("DSGEN_MODEL=\n")
	b.WriteString("DSGEN_LOG_LEVEL=\n\n")
	b.WriteString("# 端点覆盖\n")
	b.WriteString("DSGEN_ENDPOINT_CLIENT=\n")
	b.WriteString("DSGEN_ENDPOINT_OPTIONS_JSON=\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}
