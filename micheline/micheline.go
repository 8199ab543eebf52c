// Package micheline renders binary Micheline expressions as Michelson
// text while the raw bytes stream through, building a structured form
// of the expression on the side.
//
// The decoder works in constant bounded state so that a value can be
// reviewed screen by screen without ever holding the whole message:
// input arrives in chunks, output leaves through a small window, and
// the machine suspends whenever either side runs dry.
package micheline

import "errors"

// Wire tags of the Micheline binary form.
const (
	tagInt         = 0
	tagString      = 1
	tagSeq         = 2
	tagPrim0       = 3
	tagPrim0Annots = 4
	tagPrim1       = 5
	tagPrim1Annots = 6
	tagPrim2       = 7
	tagPrim2Annots = 8
	tagPrimN       = 9
	tagBytes       = 10
)

// stackDepth bounds expression nesting.
const stackDepth = 45

const hexUpper = "0123456789ABCDEF"

type stepKind uint8

const (
	stepTag stepKind = iota
	stepPrimOp
	stepPrimName
	stepPrim
	stepSize
	stepSeq
	stepBytes
	stepString
	stepAnnot
	stepInt
	stepPrintInt
	stepCapture
)

// frame is one suspended step of the machine. Fields are shared across
// steps: cur walks names, escapes and digits, first marks work not yet
// started, rem queues the low hex nibble of the byte being printed.
type frame struct {
	step  stepKind
	stop  int
	op    Opcode
	node  int32
	cur   int
	size  int
	nargs int
	esc   string
	rem   byte
	wrap  bool
	spc   bool
	first bool
	annot bool
	neg   bool
}

// Decoder renders one expression read from a Stream.
//
// Run drives the machine until the expression completes, more input is
// needed, the window fills or decoding fails. Failures are final: a
// decoder that reported one returns it from every later Run.
type Decoder struct {
	s       *Stream
	stack   [stackDepth]frame
	fp      int
	done    bool
	isUnit  bool
	err     *DecodeError
	num     NumReader
	scratch []byte
	expr    *Expression
}

// NewDecoder readies a decoder for a single expression read from s.
func NewDecoder(s *Stream) *Decoder {
	d := &Decoder{s: s, expr: &Expression{}}
	d.stack[0] = frame{step: stepTag, node: -1}
	return d
}

// IsUnit reports whether the decoded expression is a bare Unit
// primitive, without arguments or annotations.
func (d *Decoder) IsUnit() bool { return d.isUnit }

// Expression returns the structured form built so far. It is complete
// once Run has returned nil.
func (d *Decoder) Expression() *Expression { return d.expr }

// Run advances the machine. It returns nil once the expression is
// complete, ErrNeedMoreInput or ErrWindowFull when suspended, and a
// DecodeError when the input is unusable.
func (d *Decoder) Run() error {
	if d.err != nil {
		return d.err
	}
	for !d.done {
		if err := d.step(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) fail(kind ErrorKind) error {
	d.err = &DecodeError{Kind: kind, Offset: d.s.Offset()}
	return d.err
}

// wrap pins a bare error kind to the current offset.
func (d *Decoder) wrap(err error) error {
	var k ErrorKind
	if errors.As(err, &k) {
		return d.fail(k)
	}
	return err
}

func (d *Decoder) push(step stepKind) (*frame, error) {
	if d.fp >= stackDepth-1 {
		return nil, d.fail(ErrTooDeep)
	}
	d.fp++
	f := &d.stack[d.fp]
	*f = frame{step: step, node: -1}
	return f, nil
}

func (d *Decoder) pop() {
	if d.fp == 0 {
		d.done = true
		return
	}
	d.fp--
}

// beginSized plans the four byte length prefix whose value becomes the
// stop offset of the frame below.
func (d *Decoder) beginSized() error {
	f, err := d.push(stepSize)
	if err != nil {
		return err
	}
	f.size = 0
	f.stop = d.s.Offset() + 4
	return nil
}

// newNode appends an arena node and attaches it to the parent frame's
// node when there is one.
func (d *Decoder) newNode(kind NodeKind) int32 {
	idx := int32(len(d.expr.Nodes))
	d.expr.Nodes = append(d.expr.Nodes, Node{Kind: kind})
	if d.fp > 0 {
		if p := d.stack[d.fp-1].node; p >= 0 {
			d.expr.Nodes[p].Args = append(d.expr.Nodes[p].Args, idx)
		}
	}
	return idx
}

// tagSelection turns the current frame into the steps reading the
// value behind a tag.
func (d *Decoder) tagSelection(t byte) error {
	f := &d.stack[d.fp]
	switch t {
	case tagInt:
		f.step = stepInt
		f.node = d.newNode(NodeInt)
		d.num.Reset(false)
	case tagSeq:
		f.step = stepSeq
		f.first = true
		f.node = d.newNode(NodeSeq)
		return d.beginSized()
	case tagBytes:
		f.step = stepBytes
		f.first = true
		f.rem = 0
		f.node = d.newNode(NodeBytes)
		return d.beginSized()
	case tagString:
		f.step = stepString
		f.first = true
		f.node = d.newNode(NodeString)
		d.scratch = d.scratch[:0]
		return d.beginSized()
	case tagPrim0, tagPrim0Annots, tagPrim1, tagPrim1Annots, tagPrim2, tagPrim2Annots, tagPrimN:
		var nargs int
		var annot bool
		if t == tagPrimN {
			// argument count read from a sized block instead
			nargs = 3
			annot = true
			f.wrap = d.fp > 0 && d.stack[d.fp-1].step == stepPrim
		} else {
			nargs = int(t-3) >> 1
			annot = t&1 == 0
			f.wrap = d.fp > 0 && d.stack[d.fp-1].step == stepPrim
			f.wrap = f.wrap && (nargs > 0 || annot)
		}
		f.step = stepPrimOp
		f.cur = 0
		f.nargs = nargs
		f.spc = false
		f.first = true
		f.annot = annot
		f.node = d.newNode(NodePrim)
	default:
		return d.fail(ErrInvalidTag)
	}
	return nil
}

// printEscaped plans the escape sequence standing in for a string byte
// that cannot appear verbatim.
func (d *Decoder) printEscaped(b byte) error {
	f, err := d.push(stepCapture)
	if err != nil {
		return err
	}
	f.cur = 0
	switch b {
	case '\\':
		f.esc = `\\`
	case '"':
		f.esc = `\"`
	case '\r':
		f.esc = `\r`
	case '\n':
		f.esc = `\n`
	case '\t':
		f.esc = `\t`
	default:
		f.esc = string([]byte{'0' + b/100, '0' + b/10%10, '0' + b%10})
	}
	return nil
}

// step performs one machine action.
func (d *Decoder) step() error {
	f := &d.stack[d.fp]
	switch f.step {
	case stepInt:
		b, err := d.s.ReadByte()
		if err != nil {
			return err
		}
		done, err := d.num.Step(b)
		if err != nil {
			return d.wrap(err)
		}
		if done {
			f.step = stepPrintInt
			f.cur = 0
			f.neg = d.num.Negative()
			d.expr.Nodes[f.node].Int = d.num.BigInt()
		}

	case stepPrintInt:
		switch {
		case f.neg:
			if err := d.s.Put('-'); err != nil {
				return err
			}
			f.neg = false
		case f.cur < len(d.num.Text()):
			if err := d.s.Put(d.num.Text()[f.cur]); err != nil {
				return err
			}
			f.cur++
		default:
			d.pop()
		}

	case stepSize:
		b, err := d.s.ReadByte()
		if err != nil {
			return err
		}
		if f.size > 255 {
			// sizes are capped at sixteen bits
			return d.fail(ErrTooLarge)
		}
		f.size = f.size<<8 | int(b)
		if f.stop == d.s.Offset() {
			d.stack[d.fp-1].stop = d.s.Offset() + f.size
			d.pop()
		}

	case stepSeq:
		if f.stop == d.s.Offset() {
			if f.first {
				if err := d.s.Put('{'); err != nil {
					return err
				}
				f.first = false
			} else {
				if err := d.s.Put('}'); err != nil {
					return err
				}
				d.pop()
			}
			break
		}
		if f.first {
			if err := d.s.Put('{'); err != nil {
				return err
			}
			f.first = false
		} else {
			if err := d.s.Put(';'); err != nil {
				return err
			}
		}
		if _, err := d.push(stepTag); err != nil {
			return err
		}

	case stepCapture:
		if f.cur < len(f.esc) {
			if err := d.s.Put(f.esc[f.cur]); err != nil {
				return err
			}
			f.cur++
		} else {
			d.pop()
		}

	case stepBytes:
		switch {
		case f.rem != 0:
			if err := d.s.Put(f.rem); err != nil {
				return err
			}
			f.rem = 0
		case f.first:
			if err := d.s.Put('0'); err != nil {
				return err
			}
			f.rem = 'x'
			f.first = false
		case f.stop == d.s.Offset():
			d.pop()
		default:
			b, err := d.s.PeekByte()
			if err != nil {
				return err
			}
			if err := d.s.Put(hexUpper[b>>4]); err != nil {
				return err
			}
			f.rem = hexUpper[b&0x0F]
			d.s.Skip()
			d.expr.Nodes[f.node].Bytes = append(d.expr.Nodes[f.node].Bytes, b)
		}

	case stepString:
		switch {
		case f.first:
			if err := d.s.Put('"'); err != nil {
				return err
			}
			f.first = false
		case f.stop == d.s.Offset():
			if err := d.s.Put('"'); err != nil {
				return err
			}
			d.expr.Nodes[f.node].Str = string(d.scratch)
			d.pop()
		default:
			b, err := d.s.PeekByte()
			if err != nil {
				return err
			}
			if b >= 0x20 && b < 0x80 && b != '"' && b != '\\' {
				if err := d.s.Put(b); err != nil {
					return err
				}
				d.s.Skip()
				d.scratch = append(d.scratch, b)
			} else {
				d.s.Skip()
				d.scratch = append(d.scratch, b)
				if err := d.printEscaped(b); err != nil {
					return err
				}
			}
		}

	case stepAnnot:
		if f.first {
			// extend the owning primitive to cover the annotations
			d.stack[d.fp-1].stop = f.stop
		}
		if f.stop == d.s.Offset() {
			if p := d.stack[d.fp-1].node; p >= 0 {
				d.expr.Nodes[p].Annots = string(d.scratch)
			}
			d.pop()
			break
		}
		if f.first {
			if err := d.s.Put(' '); err != nil {
				return err
			}
			f.first = false
		}
		b, err := d.s.PeekByte()
		if err != nil {
			return err
		}
		if err := d.s.Put(b); err != nil {
			return err
		}
		d.s.Skip()
		d.scratch = append(d.scratch, b)

	case stepPrimOp:
		b, err := d.s.ReadByte()
		if err != nil {
			return err
		}
		op := Opcode(b)
		if !op.Valid() {
			return d.fail(ErrInvalidOp)
		}
		f.step = stepPrimName
		f.op = op
		d.expr.Nodes[f.node].Op = op
		d.isUnit = d.fp == 0 && op == OpUnit && f.nargs == 0 && !f.annot

	case stepPrimName:
		if f.wrap && f.first {
			if err := d.s.Put('('); err != nil {
				return err
			}
			f.first = false
		}
		name, _ := f.op.Name()
		if f.cur < len(name) {
			if err := d.s.Put(name[f.cur]); err != nil {
				return err
			}
			f.cur++
		} else {
			f.step = stepPrim
			if f.nargs == 3 {
				return d.beginSized()
			}
		}

	case stepPrim:
		switch {
		case f.nargs == 0 || (f.nargs == 3 && f.stop == d.s.Offset()):
			if f.annot {
				f.annot = false
				af, err := d.push(stepAnnot)
				if err != nil {
					return err
				}
				af.first = true
				d.scratch = d.scratch[:0]
				return d.beginSized()
			}
			if f.wrap {
				if err := d.s.Put(')'); err != nil {
					return err
				}
			}
			d.pop()
		case !f.spc:
			if err := d.s.Put(' '); err != nil {
				return err
			}
			f.spc = true
		default:
			if f.nargs < 3 {
				f.nargs--
			}
			f.spc = false
			if _, err := d.push(stepTag); err != nil {
				return err
			}
		}

	case stepTag:
		t, err := d.s.ReadByte()
		if err != nil {
			return err
		}
		return d.tagSelection(t)

	default:
		return d.fail(ErrInvalidState)
	}
	return nil
}
