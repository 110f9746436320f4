package builtins

import (
	"fmt"
	"io"
	"unicode"

	"github.com/marlinsh/marlin/core/eval"
)

type wcCount struct {
	bytes int
	lines int
	chars int
	words int
	name  string

	inSpace bool
}

func (w *wcCount) Write(data []byte) (int, error) {
	for _, c := range data {
		isFirstByte := w.bytes == 0
		w.bytes++

		// Assume UTF-8. Continuation bytes always have an MSB of 0b10,
		// marking them as part of a previous character.
		if c < 0b10000000 || c > 0b10111111 {
			w.chars++
		}

		if c == '\n' {
			w.lines++
		}

		if unicode.IsSpace(rune(c)) {
			w.inSpace = true
		} else {
			if w.inSpace || isFirstByte {
				w.words++
			}
			w.inSpace = false
		}
	}

	return len(data), nil
}

func countReader(name string, r io.Reader) (*wcCount, error) {
	out := wcCount{name: name}
	if _, err := io.Copy(&out, r); err != nil {
		return nil, err
	}
	return &out, nil
}

func (w *wcCount) add(other *wcCount) {
	w.bytes += other.bytes
	w.chars += other.chars
	w.lines += other.lines
	w.words += other.words
}

// Wc counts newlines, words and bytes in each input.
func Wc(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "wc [-c|-m] [-lw] [FILE ...]",
		Short: "Count newlines, words and bytes in each input file.",
	}

	opts := cmd.Flags()
	writeLines := opts.Bool('l', "write the number of newlines in each file")
	writeWords := opts.Bool('w', "write the number of words in each file")
	writeBytes := opts.Bool('c', "write the number of bytes in each file")
	writeChars := opts.Bool('m', "write the number of characters in each file")

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		nonePicked := !(*writeLines || *writeWords || *writeBytes || *writeChars)

		var cols []func(*wcCount) string
		if *writeLines || nonePicked {
			cols = append(cols, func(w *wcCount) string { return fmt.Sprint(w.lines) })
		}
		if *writeWords || nonePicked {
			cols = append(cols, func(w *wcCount) string { return fmt.Sprint(w.words) })
		}
		if *writeBytes || nonePicked {
			cols = append(cols, func(w *wcCount) string { return fmt.Sprint(w.bytes) })
		}
		if *writeChars {
			cols = append(cols, func(w *wcCount) string { return fmt.Sprint(w.chars) })
		}

		display := func(count *wcCount) {
			for i, col := range cols {
				if i != 0 {
					fmt.Fprint(ctx.Stdout, " ")
				}
				fmt.Fprint(ctx.Stdout, col(count))
			}
			fmt.Fprintln(ctx.Stdout)
		}

		if len(args) == 0 {
			count, err := countReader("", ctx.Stdin)
			if err != nil {
				return ctx.Errorf("%v", err)
			}
			display(count)
			return eval.OK()
		}

		cols = append(cols, func(w *wcCount) string { return w.name })

		total := &wcCount{name: "total"}
		for _, arg := range args {
			fd, err := ctx.Fs().Open(resolve(ctx, arg))
			if err != nil {
				return ctx.Errorf("%v", err)
			}
			count, err := countReader(arg, fd)
			fd.Close()
			if err != nil {
				return ctx.Errorf("%v", err)
			}
			total.add(count)
			display(count)
		}
		if len(args) > 1 {
			display(total)
		}
		return eval.OK()
	})
}

func init() {
	register("wc", "count newlines, words and bytes", Wc)
}
