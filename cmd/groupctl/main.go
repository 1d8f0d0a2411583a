// Command groupctl groups a roster file offline, without a running server.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"classgroups-server-go/db"
	"classgroups-server-go/grouping"
	"classgroups-server-go/models"
	"classgroups-server-go/session"
)

var (
	app = kingpin.New("groupctl", "Split a class roster into random groups")

	size = app.Flag("size", "Students per group").
		Short('s').
		Default("3").
		Envar("CLASSGROUPS_GROUPING_DEFAULTSIZE").
		Int()

	strategy = app.Flag("strategy", "Leftover handling: allow-smaller or distribute").
			Default(string(grouping.AllowSmaller)).
			Envar("CLASSGROUPS_GROUPING_DEFAULTSTRATEGY").
			Enum(string(grouping.AllowSmaller), string(grouping.Distribute))

	seed = app.Flag("seed", "Reproducible shuffle seed").String()

	absent = app.Flag("absent", "Name of an absent student (repeatable)").Short('a').Strings()

	picks = app.Flag("pick", "Also pick this many students from the groups").Default("0").Int()

	debug = app.Flag("debug", "Enable debug logging").Short('d').Bool()

	rosterFile = app.Arg("roster", "Text file with one name per line, or an .xlsx roster").Required().ExistingFile()
)

func main() {
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	students, err := loadRoster(*rosterFile)
	if err != nil {
		log.WithError(err).WithField("file", *rosterFile).Fatal("Could not read roster")
	}

	if err := run(os.Stdout, students, options{
		size:     *size,
		strategy: *strategy,
		seed:     *seed,
		absent:   *absent,
		picks:    *picks,
	}); err != nil {
		log.WithError(err).Fatal("Grouping failed")
	}
}

type options struct {
	size     int
	strategy string
	seed     string
	absent   []string
	picks    int
}

func run(w io.Writer, students []models.Student, o options) error {
	strategy, err := grouping.ParseStrategy(o.strategy)
	if err != nil {
		return err
	}

	rng := grouping.NewRand()
	if o.seed != "" {
		rng = grouping.SeededRand(o.seed)
	}
	sess := session.New("cli", rng)

	// absent students are given by name on the command line
	for _, name := range o.absent {
		for _, st := range students {
			if strings.EqualFold(st.Name, strings.TrimSpace(name)) {
				sess.SetAbsent(st.ID, true)
			}
		}
	}

	a, err := sess.Generate(students, grouping.Options{GroupSize: o.size, Strategy: strategy}, "")
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"students": a.Len(), "groups": len(a.Groups)}).Debug("Generated groups")

	if _, err := fmt.Fprintln(w, session.FormatText(session.GroupNames(a))); err != nil {
		return err
	}

	if o.picks > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	for i := 0; i < o.picks; i++ {
		d, ok := sess.Pick()
		if !ok {
			break
		}
		if _, err := fmt.Fprintf(w, "Pick %d: %s (%d left in round %d)\n", i+1, d.Item.Name, d.Remaining, d.Round); err != nil {
			return err
		}
	}
	return nil
}

// loadRoster reads names from a text file or an .xlsx roster. Students get
// positional IDs so equal names stay distinct.
func loadRoster(path string) ([]models.Student, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var students []models.Student
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		students, err = db.ReadRosterExcel(f)
		if err != nil {
			return nil, err
		}
	} else {
		students, err = readLines(f)
		if err != nil {
			return nil, err
		}
	}

	for i := range students {
		if students[i].ID == "" {
			students[i].ID = fmt.Sprintf("row-%d", i+1)
		}
	}
	return students, nil
}

func readLines(r io.Reader) ([]models.Student, error) {
	var students []models.Student
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			students = append(students, models.Student{Name: name})
		}
	}
	return students, scanner.Err()
}
