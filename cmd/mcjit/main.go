// mcjit - 执行核心诊断工具
//
// 用法:
//   mcjit -list                       # 列出内置程序
//   mcjit [-backend ic] [-run name]   # 在各后端上运行程序并比较结果
//   mcjit -run recursion -dump        # 打印程序的 IR
//   mcjit -config mcjit.toml -stats   # 按配置分层执行并打印计数器

package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/tangzhangming/mcjit/internal/config"
	"github.com/tangzhangming/mcjit/internal/jit"
	"github.com/tangzhangming/mcjit/internal/jit/codegen"
	"github.com/tangzhangming/mcjit/internal/jit/corpus"
	"github.com/tangzhangming/mcjit/internal/jit/ir"
	"github.com/tangzhangming/mcjit/internal/runtime"
)

// 版本信息
const (
	Version = "0.1.0"
	Name    = "mcjit"
)

// 命令行选项
var (
	configFlag  = flag.String("config", "", "配置文件 (TOML)")
	backendFlag = flag.String("backend", "all", "后端: full, light, ic 或 all")
	runFlag     = flag.String("run", "", "只运行指定程序")
	listFlag    = flag.Bool("list", false, "列出内置程序")
	statsFlag   = flag.Bool("stats", false, "打印计数器、计时器与已安装的特化")
	dumpFlag    = flag.Bool("dump", false, "打印程序的 IR")
	repeatFlag  = flag.Int("repeat", 3, "分层执行的重复次数")
	versionFlag = flag.Bool("version", false, "显示版本信息")
)

func main() {
	flag.Parse()
	initDisplay()

	if *versionFlag {
		fmt.Printf("%s version %s\n", Name, Version)
		return
	}
	if *listFlag {
		listPrograms()
		return
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	defer logger.Sync()

	programs, err := selectPrograms(*runFlag)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
	backends, err := selectBackends(*backendFlag)
	if err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}

	engine := jit.NewEngine(cfg, logger)
	failed := 0
	for _, p := range programs {
		if *dumpFlag {
			pterm.Println(ir.Dump(p.Build()))
		}
		failed += runProgram(engine, p, backends, logger)
	}

	if *statsFlag {
		printStats(engine)
	}
	if failed > 0 {
		pterm.Error.Printf("%d mismatches\n", failed)
		os.Exit(1)
	}
	pterm.Info.Printf("%d programs agree on %d backends\n", len(programs), len(backends))
}

func initDisplay() {
	pterm.Info.Prefix = pterm.Prefix{
		Text:  "  OK",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "  FAIL",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

func selectPrograms(name string) ([]corpus.Program, error) {
	if name == "" {
		return corpus.All(), nil
	}
	p, ok := corpus.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown program %q (known: %s)", name, strings.Join(corpus.Names(), ", "))
	}
	return []corpus.Program{p}, nil
}

func selectBackends(name string) ([]codegen.BackendKind, error) {
	if name == "all" {
		return codegen.Backends(), nil
	}
	kind, err := codegen.ParseBackend(name)
	if err != nil {
		return nil, err
	}
	return []codegen.BackendKind{kind}, nil
}

func listPrograms() {
	var ll pterm.LeveledList
	for _, p := range corpus.All() {
		ll = append(ll, pterm.LeveledListItem{Level: 0, Text: p.Name})
		ll = append(ll, pterm.LeveledListItem{Level: 1, Text: p.Description})
	}
	pterm.DefaultTree.WithRoot(pterm.NewTreeFromLeveledList(ll)).Render()
}

// runProgram 在每个后端上运行一次，再按配置分层执行若干次，返回不一致的次数
func runProgram(engine *jit.Engine, p corpus.Program, backends []codegen.BackendKind, logger *zap.Logger) int {
	failed := 0
	check := func(label string, got runtime.Value, err error) {
		switch {
		case err != nil:
			failed++
			pterm.Error.Printf("%-18s %-6s error: %v\n", p.Name, label, err)
		case !p.Matches(got):
			failed++
			pterm.Error.Printf("%-18s %-6s expected %s, got %s\n", p.Name, label,
				runtime.ToString(p.Expected), runtime.ToString(got))
		default:
			pterm.Info.Printf("%-18s %-6s %s\n", p.Name, label, runtime.ToString(got))
		}
	}

	for _, kind := range backends {
		fn := engine.NewFunction(p.Build())
		got, err := engine.CallWith(kind, fn, runtime.UndefinedValue, p.Args...)
		check(kind.String(), got, err)
	}

	fn := engine.NewFunction(p.Build())
	for i := 0; i < *repeatFlag; i++ {
		got, err := engine.Call(fn, runtime.UndefinedValue, p.Args...)
		if err != nil || !p.Matches(got) || i == *repeatFlag-1 {
			check("tiered", got, err)
		}
	}
	logger.Debug("program finished", zap.String("program", p.Name), zap.Int("mismatches", failed))
	return failed
}

func printStats(engine *jit.Engine) {
	stats := engine.GetStats()
	pterm.Println()
	pterm.Println("engine")
	pterm.Printf("  functions %d, compiled %d, specializations %d, compile time %s\n",
		stats.Functions, stats.CompiledFunctions, stats.Specializations, stats.TotalCompileTime)
	pterm.Printf("  cache hits %s, misses %s, interpreted %s, deopts %s\n",
		humanize.Comma(stats.CacheHits), humanize.Comma(stats.CacheMisses),
		humanize.Comma(stats.Interpreted), humanize.Comma(stats.Deopts))

	pterm.Println()
	pterm.Println("counters")
	for _, r := range engine.Report() {
		pterm.Println("  " + r.String())
	}

	pterm.Println()
	pterm.Println("specializations")
	entries := engine.Functions().Entries()
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Meta.FullName() != b.Meta.FullName() {
			return a.Meta.FullName() < b.Meta.FullName()
		}
		return a.Backend < b.Backend
	})
	var ll pterm.LeveledList
	for _, entry := range entries {
		ll = append(ll, pterm.LeveledListItem{
			Level: 0,
			Text:  fmt.Sprintf("%s [%s] %s", entry.Meta.FullName(), entry.Backend, entry.FunctionState()),
		})
		for _, s := range entry.Specializations() {
			ll = append(ll, pterm.LeveledListItem{Level: 1, Text: s.Signature().String()})
		}
	}
	if len(ll) > 0 {
		pterm.DefaultTree.WithRoot(pterm.NewTreeFromLeveledList(ll)).Render()
	}
}
