package builtins

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/marlinsh/marlin/core/eval"
)

// resolve rebases a path operand onto the shell's working directory.
func resolve(ctx *eval.Context, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ctx.Getwd(), path)
}

// Cat concatenates files to stdout; with no operands it copies stdin.
func Cat(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "cat [FILE] ...",
		Short: "Concatenate files to standard output.",
	}

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		if len(args) == 0 {
			if _, err := io.Copy(ctx.Stdout, ctx.Stdin); err != nil {
				return ctx.Errorf("%v", err)
			}
			return eval.OK()
		}

		for _, arg := range args {
			fd, err := ctx.Fs().Open(resolve(ctx, arg))
			if err != nil {
				return ctx.Errorf("%v", err)
			}
			_, err = io.Copy(ctx.Stdout, fd)
			fd.Close()
			if err != nil {
				return ctx.Errorf("%v", err)
			}
		}
		return eval.OK()
	})
}

// Touch updates file times, creating missing files.
func Touch(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "touch [-c] FILE ...",
		Short: "Update file times, creating files as needed.",
	}

	noCreate := cmd.Flags().BoolLong("no-create", 'c', "don't create missing files")

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		now := time.Now()
		status := eval.OK()
		for _, arg := range args {
			path := resolve(ctx, arg)
			err := ctx.Fs().Chtimes(path, now, now)
			switch {
			case errors.Is(err, fs.ErrNotExist) && *noCreate:
				// Not an error.
			case errors.Is(err, fs.ErrNotExist):
				fd, cerr := ctx.Fs().Create(path)
				if cerr != nil {
					status = ctx.Errorf("cannot touch %q: %v", arg, cerr)
					continue
				}
				fd.Close()
			case err != nil:
				status = ctx.Errorf("setting times of %q: %v", arg, err)
			}
		}
		return status
	})
}

// Mkdir creates directories.
func Mkdir(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "mkdir [-p] DIRECTORY ...",
		Short: "Create directories if they don't exist.",
	}

	makeParents := cmd.Flags().BoolLong("parents", 'p', "make parents if needed")

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		if len(args) == 0 {
			return ctx.Errorf("missing operand")
		}

		op := ctx.Fs().Mkdir
		if *makeParents {
			op = ctx.Fs().MkdirAll
		}

		status := eval.OK()
		for _, arg := range args {
			if err := op(resolve(ctx, arg), 0777); err != nil {
				status = ctx.Errorf("cannot create directory %q: %v", arg, err)
			}
		}
		return status
	})
}

// Rm removes files, or directories with -r.
func Rm(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "rm [-rf] FILE ...",
		Short: "Remove files or directories.",
	}

	recursive := cmd.Flags().BoolLong("recursive", 'r', "remove directories and their contents")
	force := cmd.Flags().BoolLong("force", 'f', "ignore missing operands")

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		status := eval.OK()
		for _, arg := range args {
			path := resolve(ctx, arg)
			info, err := ctx.Fs().Stat(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				if !*force {
					status = ctx.Errorf("cannot remove %q: no such file or directory", arg)
				}
			case err != nil:
				status = ctx.Errorf("cannot stat %q: %v", arg, err)
			case info.IsDir() && !*recursive:
				status = ctx.Errorf("cannot remove %q: is a directory", arg)
			case info.IsDir():
				if err := ctx.Fs().RemoveAll(path); err != nil {
					status = ctx.Errorf("cannot remove %q: %v", arg, err)
				}
			default:
				if err := ctx.Fs().Remove(path); err != nil {
					status = ctx.Errorf("cannot remove %q: %v", arg, err)
				}
			}
		}
		return status
	})
}

// Ls lists directory contents.
func Ls(ctx *eval.Context, args []string) eval.Status {
	cmd := &SimpleCommand{
		Use:   "ls [-al] [FILE] ...",
		Short: "List directory contents.",
	}

	listAll := cmd.Flags().Bool('a', "don't ignore entries starting with .")
	longListing := cmd.Flags().Bool('l', "use a long listing format")

	return cmd.Run(ctx, args, func(args []string) eval.Status {
		if len(args) == 0 {
			args = []string{"."}
		}
		showHeaders := len(args) > 1

		display := func(info os.FileInfo) {
			name := info.Name()
			if !*listAll && len(name) > 0 && name[0] == '.' {
				return
			}
			if *longListing {
				fmt.Fprintf(ctx.Stdout, "%s %8d %s %s\n",
					info.Mode(), info.Size(),
					info.ModTime().Format("Jan _2 15:04"), name)
				return
			}
			fmt.Fprintln(ctx.Stdout, name)
		}

		status := eval.OK()
		for i, arg := range args {
			path := resolve(ctx, arg)
			info, err := ctx.Fs().Stat(path)
			if err != nil {
				status = ctx.Errorf("cannot access %q: %v", arg, err)
				continue
			}

			if showHeaders {
				if i > 0 {
					fmt.Fprintln(ctx.Stdout)
				}
				fmt.Fprintf(ctx.Stdout, "%s:\n", arg)
			}

			if !info.IsDir() {
				display(info)
				continue
			}

			entries, err := afero.ReadDir(ctx.Fs(), path)
			if err != nil {
				status = ctx.Errorf("cannot read %q: %v", arg, err)
				continue
			}
			for _, e := range entries {
				display(e)
			}
		}
		return status
	})
}

func init() {
	register("cat", "concatenate files to standard output", Cat)
	register("touch", "update file times, creating files as needed", Touch)
	register("mkdir", "create directories", Mkdir)
	register("rm", "remove files or directories", Rm)
	register("ls", "list directory contents", Ls)
}
