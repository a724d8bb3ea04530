package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/helixir/arxiv-collector/internal/domain"
	"github.com/helixir/arxiv-collector/internal/traversal"
)

const traversePrompt = "[enter/n] next  [p] previous  [number] jump  [q] quit > "

// traverse drives cursor from line commands on in until q or end of input.
func traverse(in io.Reader, out io.Writer, cursor *traversal.Cursor[domain.Article]) error {
	if cursor.Len() == 0 {
		fmt.Fprintln(out, "No articles found.")
		return nil
	}

	show := func() {
		if a, ok := cursor.Current(); ok {
			fmt.Fprintln(out, renderArticle(&a, cursor.Position(), cursor.Len()))
		}
	}
	show()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, traversePrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			cursor.Terminate()
			return scanner.Err()
		}

		switch cmd := strings.ToLower(strings.TrimSpace(scanner.Text())); cmd {
		case "", "n":
			cursor.Advance()
		case "p":
			cursor.Retreat()
		case "q":
			cursor.Terminate()
			return nil
		default:
			n, err := strconv.Atoi(cmd)
			if err != nil {
				fmt.Fprintf(out, "unknown command %q\n", cmd)
				continue
			}
			if _, err := cursor.JumpTo(n); err != nil {
				fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("no article #%d (1-%d)", n, cursor.Len())))
				continue
			}
		}
		show()
	}
}
