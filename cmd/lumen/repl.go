package main

import (
	"fmt"
	"io"
	"lumen-lang/internal/diag"
	"lumen-lang/internal/lexer"
	"lumen-lang/internal/parser"
	"lumen-lang/internal/runtime"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
)

// ---- ANSI colors ----

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// blockOpeners lists the Lua-like keywords that open a block; blockDepthDelta
// matches the same words so the REPL can tell whether accumulated input
// still has unterminated blocks.
var blockOpeners = map[string]int{
	"if": 1, "while": 1, "for": 1, "function": 1, "do": 1, "repeat": 1,
}

// blockDepthDelta returns how much a line shifts the open-block depth,
// tracking repeat/until separately since until closes without "end".
func blockDepthDelta(line string) int {
	delta := 0
	loopHeader := false
	for _, word := range strings.Fields(line) {
		word = strings.Trim(word, "(),")
		switch word {
		case "if", "function":
			delta++
		case "while", "for":
			// the "do" of this loop header opens no further block
			delta++
			loopHeader = true
		case "do":
			if loopHeader {
				loopHeader = false
			} else {
				delta++
			}
		case "repeat":
			delta++
		case "end":
			delta--
		case "until":
			delta--
		}
	}
	return delta
}

// ---- repl command ----

func cmdRepl() {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".lumen_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            colorGreen + "lumen> " + colorReset,
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init failed: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "%s%slumen-lang REPL%s %s(type 'exit' or Ctrl+D to quit)%s\n\n",
		colorBold, colorCyan, colorReset, colorGray, colorReset)

	sandbox := runtime.NewTable()
	interp := runtime.NewInterpreter(rl.Stdout(), sandbox)
	var accumulated strings.Builder
	blockDepth := 0

	for {
		if blockDepth > 0 {
			rl.SetPrompt(colorGray + "...    " + colorReset)
		} else {
			rl.SetPrompt(colorGreen + "lumen> " + colorReset)
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if blockDepth > 0 {
					accumulated.Reset()
					blockDepth = 0
					continue
				}
				fmt.Fprintf(rl.Stdout(), "\n%s(use 'exit' or Ctrl+D to quit)%s\n", colorGray, colorReset)
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(rl.Stdout())
			}
			break
		}

		if blockDepth == 0 && strings.TrimSpace(line) == "exit" {
			break
		}

		blockDepth += blockDepthDelta(line)
		if blockDepth < 0 {
			blockDepth = 0
		}
		accumulated.WriteString(line)
		accumulated.WriteString("\n")

		if blockDepth > 0 {
			continue
		}

		source := accumulated.String()
		accumulated.Reset()

		if strings.TrimSpace(source) == "" {
			continue
		}

		l := lexer.New(source, "<repl>")
		tokens, lexDiags := l.Tokenize()
		if len(lexDiags) > 0 {
			printDiagsColored(rl.Stderr(), lexDiags)
			continue
		}

		p := parser.New(tokens)
		file, parseDiags := p.ParseFile()
		if len(parseDiags) > 0 {
			printDiagsColored(rl.Stderr(), parseDiags)
			continue
		}

		result, err := interp.Run(file)
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "%serror: %s%s\n", colorRed, err, colorReset)
			continue
		}
		if result != nil && result.TypeName() != "nil" {
			fmt.Fprintf(rl.Stdout(), "%s%s%s\n", colorYellow, result.String(), colorReset)
		}
	}
}

// printDiagsColored prints diagnostics with red color for REPL display.
func printDiagsColored(w io.Writer, diags []diag.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%s%s%s\n", colorRed, d.String(), colorReset)
	}
}
