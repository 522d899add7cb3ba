package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
	"github.com/otfkit/otconv/ot"
	"github.com/otfkit/otconv/otconv"
	"github.com/pterm/pterm"
)

// tracer traces with key 'otfkit.otconv'
func tracer() tracing.Trace {
	return tracing.Select("otfkit.otconv")
}

func main() {
	initDisplay()

	// set up logging
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	conf := testconfig.Conf{
		"tracing.adapter":     "go",
		"trace.otfkit.otconv": "Info",
	}
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.ReplaceTracers(true)); err != nil {
		fmt.Printf("error configuring tracing")
		os.Exit(1)
	}
	tracing.SetTraceSelector(trace2go.Selector())

	// command line flags
	tlevel := flag.String("trace", "Info", "Trace level [Debug|Info|Error]")
	glyphs := flag.Int("glyphs", 16, "Number of glyphs in the demo glyph order")
	flag.Parse()
	tracer().SetTraceLevel(tracing.LevelError) // will set the correct level later
	pterm.Info.Println("Welcome to the OpenType table converter CLI")
	//
	// set up REPL
	repl, err := readline.New("otconv > ")
	if err != nil {
		tracer().Errorf(err.Error())
		os.Exit(3)
	}
	intp := &Intp{repl: repl, reg: demoRegistry()}
	intp.ctx = otconv.NewContext(demoGlyphOrder(*glyphs))
	intp.ctx.Diag = &otconv.Collector{}
	//
	// start receiving commands
	pterm.Info.Println("Quit with <ctrl>D")
	switch *tlevel {
	case "Debug":
		tracer().SetTraceLevel(tracing.LevelDebug)
	case "Info":
		tracer().SetTraceLevel(tracing.LevelInfo)
	case "Error":
		tracer().SetTraceLevel(tracing.LevelError)
	default:
		tracer().Errorf("Invalid trace level: %s", *tlevel)
		os.Exit(5)
	}
	tracer().Infof("Trace level is %s", *tlevel)
	intp.REPL() // go into interactive mode
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.EnableDebugMessages()
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " !  ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

// Intp is our interpreter object
type Intp struct {
	repl  *readline.Instance
	reg   *otconv.Registry
	ctx   *otconv.Context
	table *otconv.Table
	data  []byte // last decoded or encoded binary
}

func (intp *Intp) String() string {
	if intp == nil || intp.table == nil {
		return "()"
	}
	return fmt.Sprintf("( table=%s, %d bytes )", intp.table.Def().Name, len(intp.data))
}

// REPL starts interactive mode.
func (intp *Intp) REPL() {
	for {
		pterm.Println(intp.String())
		line, err := intp.repl.Readline()
		if err != nil { // io.EOF
			break
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		cmd, err := intp.parseCommand(line)
		if err != nil {
			tracer().Errorf(err.Error())
			continue
		}
		err, quit := intp.execute(cmd)
		if err != nil {
			tracer().Errorf(err.Error())
			continue
		}
		if quit {
			break
		}
	}
	pterm.Info.Println("Good bye!")
}

type Op struct {
	code int
	arg  string
	arg2 string
}

type Command struct {
	count int
	op    [32]Op
}

const NOOP = -1
const (
	// op-code QUIT will not have arguments
	QUIT int = iota
	// op-codes below may have arguments
	HELP
	TABLES
	FIELDS
	DECODE
	IMPORT
	ENCODE
	EXPORT
	GET
	XML
	LAZY
	WARNINGS
)

var opMap = map[string]int{
	"quit":     QUIT,
	"help":     HELP,
	"tables":   TABLES,
	"fields":   FIELDS,
	"decode":   DECODE,
	"import":   IMPORT,
	"encode":   ENCODE,
	"export":   EXPORT,
	"get":      GET,
	"xml":      XML,
	"lazy":     LAZY,
	"warnings": WARNINGS,
}

var opNames = []string{
	"quit",
	"help",
	"tables",
	"fields",
	"decode",
	"import",
	"encode",
	"export",
	"get",
	"xml",
	"lazy",
	"warnings",
}

var command = Command{}

func resetCommand() {
	command.count = 0
	for i := range command.op {
		command.op[i].code = NOOP
		command.op[i].arg = ""
		command.op[i].arg2 = ""
	}
}

func (intp *Intp) parseCommand(line string) (*Command, error) {
	resetCommand()
	steps := strings.Split(line, " ")
	command.count = len(steps)
	for i, step := range steps {
		c := strings.Split(step, ":") // e.g.  "decode:Device:dev.bin" or "get:DeltaFormat"
		code, ok := opMap[strings.ToLower(c[0])]
		if !ok {
			code = HELP
		}
		command.op[i].code = code
		if command.op[i].code == QUIT {
			return &command, nil
		}
		command.op[i].arg = getOptArg(c, 1)
		command.op[i].arg2 = getOptArg(c, 2)
		if command.op[i].arg == "" {
			tracer().Infof("%s", opNames[command.op[i].code])
		} else {
			tracer().Infof("%s: looking for '%s'", opNames[command.op[i].code], command.op[i].arg)
		}
	}
	return &command, nil
}

var commandFn = map[int]func(*Intp, *Op) (error, bool){
	QUIT:     quitOp,
	HELP:     helpOp,
	TABLES:   tablesOp,
	FIELDS:   fieldsOp,
	DECODE:   decodeOp,
	IMPORT:   importOp,
	ENCODE:   encodeOp,
	EXPORT:   exportOp,
	GET:      getOp,
	XML:      xmlOp,
	LAZY:     lazyOp,
	WARNINGS: warningsOp,
}

func (intp *Intp) execute(cmd *Command) (err error, stop bool) {
	tracer().Debugf("cmd = %v", cmd.op)
	for _, c := range cmd.op {
		if c.code == NOOP {
			break
		}
		f, ok := commandFn[c.code]
		if !ok {
			pterm.Error.Printf("unknown command code: %d\n", c.code)
			return nil, false
		}
		err, stop = f(intp, &c)
		if err != nil {
			pterm.Error.Println(err)
			return
		}
		if stop {
			return
		}
	}
	return
}

func quitOp(intp *Intp, op *Op) (error, bool) {
	pterm.Println("Goodbye!")
	return nil, true
}

// decodeOp decodes a binary table file against a declared table shape, e.g.
// "decode:Device:testdata/device.bin".
func decodeOp(intp *Intp, op *Op) (error, bool) {
	def, err := intp.reg.Table(op.arg)
	if err != nil {
		return err, false
	}
	if op.arg2 == "" {
		return errors.New("decode needs a file argument, e.g. decode:Device:dev.bin"), false
	}
	data, err := os.ReadFile(op.arg2)
	if err != nil {
		return err, false
	}
	r := ot.NewReader(data)
	table := otconv.NewTable(def)
	if err := table.Decompile(r, intp.ctx); err != nil {
		return err, false
	}
	intp.table, intp.data = table, data
	pterm.Printf("decoded %s (%d bytes)\n", def.Name, len(data))
	return nil, false
}

// importOp reconstructs a table from an XML file, e.g.
// "import:Device:testdata/device.ttx".
func importOp(intp *Intp, op *Op) (error, bool) {
	def, err := intp.reg.Table(op.arg)
	if err != nil {
		return err, false
	}
	if op.arg2 == "" {
		return errors.New("import needs a file argument, e.g. import:Device:dev.xml"), false
	}
	data, err := os.ReadFile(op.arg2)
	if err != nil {
		return err, false
	}
	root, err := otconv.ParseXML(data)
	if err != nil {
		return err, false
	}
	table := otconv.NewTable(def)
	if err := table.FromXML(root, intp.ctx); err != nil {
		return err, false
	}
	intp.table, intp.data = table, nil
	pterm.Printf("imported %s from %s\n", def.Name, op.arg2)
	return nil, false
}

// encodeOp re-encodes the current table and reports (or writes) the bytes.
func encodeOp(intp *Intp, op *Op) (error, bool) {
	if intp.table == nil {
		return errNoTable, false
	}
	w := ot.NewWriter()
	if err := intp.table.Compile(w, intp.ctx); err != nil {
		return err, false
	}
	data, err := w.Data()
	if err != nil {
		return err, false
	}
	intp.data = data
	if op.arg != "" {
		if err := os.WriteFile(op.arg, data, 0o644); err != nil {
			return err, false
		}
		pterm.Printf("encoded %s to %s (%d bytes)\n", intp.table.Def().Name, op.arg, len(data))
	} else {
		pterm.Printf("encoded %s to %d bytes\n", intp.table.Def().Name, len(data))
	}
	return nil, false
}

// exportOp writes the current table as XML to a file, or to the screen when
// no file is given.
func exportOp(intp *Intp, op *Op) (error, bool) {
	if intp.table == nil {
		return errNoTable, false
	}
	root := otconv.NewElement("root")
	if err := intp.table.ToXML(root, intp.ctx, "", nil); err != nil {
		return err, false
	}
	text := root.Children[0].String()
	if op.arg != "" {
		if err := os.WriteFile(op.arg, []byte(text), 0o644); err != nil {
			return err, false
		}
		pterm.Printf("exported %s to %s\n", intp.table.Def().Name, op.arg)
	} else {
		pterm.Println(text)
	}
	return nil, false
}

func xmlOp(intp *Intp, op *Op) (error, bool) {
	return exportOp(intp, &Op{code: EXPORT})
}

func lazyOp(intp *Intp, op *Op) (error, bool) {
	switch strings.ToLower(op.arg) {
	case "on":
		intp.ctx.Lazy = true
	case "off":
		intp.ctx.Lazy = false
	case "":
	default:
		return errors.New("lazy takes 'on' or 'off'"), false
	}
	pterm.Printf("lazy decoding is %v\n", intp.ctx.Lazy)
	return nil, false
}

func warningsOp(intp *Intp, op *Op) (error, bool) {
	warnings := intp.ctx.Diag.Warnings()
	if len(warnings) == 0 {
		pterm.Println("no warnings collected")
		return nil, false
	}
	for _, w := range warnings {
		pterm.Println(w.String())
	}
	return nil, false
}

var errNoTable = errors.New("no table set; use decode or import first")

func getOptArg(s []string, inx int) string {
	if len(s) > inx {
		return s[inx]
	}
	return ""
}

func (op *Op) noArg() bool {
	return op.arg == ""
}
