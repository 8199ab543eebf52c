// Package operation decodes forged operation payloads field by field
// while the raw bytes stream through, producing the exact values a
// reviewer confirms on screen.
//
// The decoder shares its window protocol with package micheline: Run
// returns micheline.ErrNeedMoreInput when the current chunk is drained
// and micheline.ErrWindowFull when a finished value waits in the
// window. A nil return means the payload is complete; text still in
// the window belongs to the last value.
package operation

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/mavryk-network/mvsign/b58"
	"github.com/mavryk-network/mvsign/micheline"
)

// Operations nest at most a field list, an option wrapper and a sized
// element, so a short stack suffices.
const stackDepth = 6

// captureSize bounds how much of a long binary field is hex dumped
// before the chunk is flushed and capture restarts.
const captureSize = 256

const sizeUnknown = -1

const unsetMessage = "Field unset"

type stepKind uint8

const (
	stepMagic stepKind = iota
	stepBranch
	stepBatch
	stepTag
	stepTuple
	stepField
	stepOption
	stepSize
	stepPrint
	stepPartialPrint
	stepReadNum
	stepReadInt32
	stepReadBytes
	stepReadPK
	stepReadString
	stepReadBinary
	stepReadEntrypoint
	stepReadMicheline
	stepReadSoruKind
	stepReadBallot
	stepReadProtos
	stepReadPKHList
	stepReadSoruMessages
)

// frame is one level of the decode stack. Steps reuse the generic
// slots: cur counts consumed bytes or printed characters, size holds
// fixed read lengths and the SIZE accumulator, stop is the absolute
// offset where sized content ends.
type frame struct {
	step stepKind
	stop int

	field    *fieldDesc
	fields   []fieldDesc
	fieldIdx int

	kind    fieldKind
	name    string
	str     string
	cur     int
	size    int
	sizeLen int
	index   int
	val     int32

	skip   bool
	inited bool
}

// FieldInfo names the value currently streaming out of the window.
// Complex marks fields that deserve an expert warning, Index counts
// the displayed fields of the payload.
type FieldInfo struct {
	Name    string
	Complex bool
	Index   int
}

// Decoder turns one signing payload, a batch of operations or a bare
// Micheline expression, into a sequence of named screen values.
type Decoder struct {
	s  *micheline.Stream
	fp int

	stack [stackDepth]frame
	field FieldInfo
	num   micheline.NumReader
	mich  *micheline.Decoder
	err   *micheline.DecodeError

	capture []byte
	source  []byte

	batchIndex  int
	opCount     int
	reveals     int
	totalFee    uint64
	totalAmount uint64

	done bool
}

// NewDecoder decodes a signing payload read from s. The total payload
// size is usually unknown until the host sends the last chunk; call
// SetSize once it is.
func NewDecoder(s *micheline.Stream) *Decoder {
	d := &Decoder{s: s}
	d.stack[0] = frame{step: stepMagic, stop: sizeUnknown}
	return d
}

// SetSize pins the total payload length in bytes. Batches check it
// between operations, expressions when their root value completes.
func (d *Decoder) SetSize(n int) {
	d.stack[0].stop = n
}

// Field reports what the window content belongs to.
func (d *Decoder) Field() FieldInfo { return d.field }

// TotalFee is the sum of all fees decoded so far, in microMVRK.
func (d *Decoder) TotalFee() uint64 { return d.totalFee }

// TotalAmount is the sum of all amounts and balances decoded so far,
// in microMVRK.
func (d *Decoder) TotalAmount() uint64 { return d.totalAmount }

// NumOperations counts the operations seen so far.
func (d *Decoder) NumOperations() int { return d.opCount }

// Expression returns the structured form of the last Micheline value
// decoded, or nil when none was.
func (d *Decoder) Expression() *micheline.Expression {
	if d.mich == nil {
		return nil
	}
	return d.mich.Expression()
}

// Run decodes until the payload completes, more input is needed or the
// window holds a finished value. Decode failures are sticky.
func (d *Decoder) Run() error {
	if d.err != nil {
		return d.err
	}
	for !d.done {
		if err := d.step(); err != nil {
			var de *micheline.DecodeError
			if errors.As(err, &de) {
				d.err = de
			}
			return err
		}
	}
	return nil
}

func (d *Decoder) fail(kind micheline.ErrorKind) error {
	return &micheline.DecodeError{Kind: kind, Offset: d.s.Offset()}
}

func (d *Decoder) wrap(err error) error {
	var kind micheline.ErrorKind
	if errors.As(err, &kind) {
		return d.fail(kind)
	}
	return err
}

func (d *Decoder) push(step stepKind) (*frame, error) {
	if d.fp >= stackDepth-1 {
		return nil, d.fail(micheline.ErrTooDeep)
	}
	d.fp++
	d.stack[d.fp] = frame{step: step}
	return &d.stack[d.fp], nil
}

func (d *Decoder) pop() {
	if d.fp == 0 {
		d.done = true
		return
	}
	d.fp--
}

// beginSized pushes a step reading an n byte big endian length which
// then pins the parent frame's stop offset.
func (d *Decoder) beginSized(n int) error {
	f, err := d.push(stepSize)
	if err != nil {
		return err
	}
	f.sizeLen = n
	return nil
}

// printCapture hands the captured text to a print step unless the
// field is skipped.
func (d *Decoder) printCapture(f *frame) {
	if f.skip {
		d.pop()
		return
	}
	f.step = stepPrint
	f.str = string(d.capture)
	f.cur = 0
}

func (d *Decoder) step() error {
	f := &d.stack[d.fp]
	switch f.step {
	case stepMagic:
		return d.runMagic(f)
	case stepBranch:
		return d.runBranch(f)
	case stepBatch:
		return d.runBatch(f)
	case stepTag:
		return d.runTag(f)
	case stepTuple:
		return d.runTuple(f)
	case stepField:
		return d.runField(f)
	case stepOption:
		return d.runOption(f)
	case stepSize:
		return d.runSize(f)
	case stepPrint, stepPartialPrint:
		return d.runPrint(f, f.step == stepPartialPrint)
	case stepReadNum:
		return d.runReadNum(f)
	case stepReadInt32:
		return d.runReadInt32(f)
	case stepReadBytes:
		return d.runReadBytes(f)
	case stepReadPK:
		return d.runReadPK(f)
	case stepReadString:
		return d.runReadString(f)
	case stepReadBinary:
		return d.runReadBinary(f)
	case stepReadEntrypoint:
		return d.runReadEntrypoint(f)
	case stepReadMicheline:
		return d.runReadMicheline(f)
	case stepReadSoruKind:
		return d.runReadSoruKind(f)
	case stepReadBallot:
		return d.runReadBallot(f)
	case stepReadProtos, stepReadPKHList, stepReadSoruMessages:
		return d.runReadList(f)
	}
	return d.fail(micheline.ErrInvalidState)
}

// runMagic reads the magic byte telling a batch of operations apart
// from a bare Micheline expression.
func (d *Decoder) runMagic(f *frame) error {
	b, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	switch b {
	case 3:
		d.field.Name = "Branch"
		f.step = stepBranch
		nf, err := d.push(stepReadBytes)
		if err != nil {
			return err
		}
		nf.kind = fieldBranchHash
		nf.skip = true
		nf.size = 32
	case 5:
		f.step = stepReadMicheline
		f.skip = false
		f.inited = false
		f.name = "Expression"
		f.stop = 0
	default:
		return d.fail(micheline.ErrInvalidTag)
	}
	return nil
}

func (d *Decoder) runBranch(f *frame) error {
	f.step = stepBatch
	_, err := d.push(stepTag)
	return err
}

// runBatch schedules the next operation of the batch until the pinned
// payload size is reached exactly.
func (d *Decoder) runBatch(f *frame) error {
	d.batchIndex++
	switch {
	case f.stop != sizeUnknown && d.s.Offset() == f.stop:
		d.pop()
	case f.stop != sizeUnknown && d.s.Offset() > f.stop:
		return d.fail(micheline.ErrTooLarge)
	default:
		_, err := d.push(stepTag)
		return err
	}
	return nil
}

// runTag looks up the operation behind the tag byte and announces it
// before its fields stream.
func (d *Decoder) runTag(f *frame) error {
	t, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	desc := lookupOp(t)
	if desc == nil {
		return d.fail(micheline.ErrInvalidTag)
	}
	if t == tagReveal {
		d.reveals++
		if d.reveals > 1 {
			return d.fail(micheline.ErrInvalidData)
		}
	}
	f.step = stepTuple
	f.fields = desc.fields
	f.fieldIdx = 0
	nf, err := d.push(stepPrint)
	if err != nil {
		return err
	}
	d.field.Name = fmt.Sprintf("Operation (%d)", d.batchIndex)
	nf.str = desc.name
	d.opCount++
	return nil
}

func (d *Decoder) runTuple(f *frame) error {
	// finished value from the previous field goes out first
	if d.s.Pending() > 0 {
		return micheline.ErrWindowFull
	}
	if f.fieldIdx >= len(f.fields) {
		d.field.Complex = false
		d.pop()
		return nil
	}
	fd := &f.fields[f.fieldIdx]
	f.fieldIdx++
	nf, err := d.push(stepField)
	if err != nil {
		return err
	}
	nf.field = fd
	return nil
}

// runField plans the steps reading one field. Field info is only
// updated for fields that reach the screen.
func (d *Decoder) runField(f *frame) error {
	fd := f.field
	if !fd.skip {
		d.field.Name = fd.name
		d.field.Complex = fd.complex
		d.field.Index++
	}

	switch fd.kind {
	case fieldOption:
		f.step = stepOption
	case fieldTuple:
		f.step = stepTuple
		f.fields = fd.fields
		f.fieldIdx = 0
	case fieldBinary:
		f.step = stepReadBinary
		f.skip = fd.skip
		d.capture = d.capture[:0]
		return d.beginSized(4)
	case fieldSource, fieldPKH:
		d.readBytesField(f, fd, 21)
	case fieldPK:
		f.step = stepReadPK
		f.skip = fd.skip
	case fieldSR:
		d.readBytesField(f, fd, 20)
	case fieldSRC, fieldProto:
		d.readBytesField(f, fd, 32)
	case fieldProtos:
		return d.readListField(f, fd, stepReadProtos)
	case fieldDestination:
		d.readBytesField(f, fd, 22)
	case fieldNat, fieldFee, fieldAmount:
		f.step = stepReadNum
		f.kind = fd.kind
		f.skip = fd.skip
		d.num.Reset(true)
	case fieldInt:
		f.step = stepReadNum
		f.kind = fd.kind
		f.skip = fd.skip
		d.num.Reset(false)
	case fieldInt32:
		f.step = stepReadInt32
		f.skip = fd.skip
		f.val = 0
		f.cur = 0
	case fieldEntrypoint:
		f.step = stepReadEntrypoint
		f.skip = fd.skip
	case fieldExpr:
		f.step = stepReadMicheline
		f.skip = fd.skip
		f.inited = false
		f.name = fd.name
		return d.beginSized(4)
	case fieldString:
		f.step = stepReadString
		f.skip = fd.skip
		d.capture = d.capture[:0]
		return d.beginSized(4)
	case fieldSoruMessages:
		return d.readListField(f, fd, stepReadSoruMessages)
	case fieldSoruKind:
		f.step = stepReadSoruKind
		f.skip = fd.skip
	case fieldPKHList:
		return d.readListField(f, fd, stepReadPKHList)
	case fieldBallot:
		f.step = stepReadBallot
		f.skip = fd.skip
	default:
		return d.fail(micheline.ErrInvalidState)
	}
	return nil
}

func (d *Decoder) readBytesField(f *frame, fd *fieldDesc, n int) {
	f.step = stepReadBytes
	f.kind = fd.kind
	f.skip = fd.skip
	f.size = n
	f.cur = 0
	d.capture = d.capture[:0]
}

func (d *Decoder) readListField(f *frame, fd *fieldDesc, step stepKind) error {
	f.step = step
	f.name = fd.name
	f.index = 0
	f.skip = fd.skip
	return d.beginSized(4)
}

// runOption reads the presence byte of an optional field.
func (d *Decoder) runOption(f *frame) error {
	b, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	inner := f.field.inner
	if b == 0 {
		if f.field.displayNone {
			if inner.skip {
				return d.fail(micheline.ErrInvalidState)
			}
			f.step = stepPrint
			f.str = unsetMessage
			f.cur = 0
		} else {
			d.pop()
		}
		return nil
	}
	f.step = stepField
	f.field = inner
	return nil
}

// runSize accumulates a big endian length, capped at 16 bits, and pins
// the parent frame's stop offset.
func (d *Decoder) runSize(f *frame) error {
	b, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	if f.size > 255 {
		return d.fail(micheline.ErrTooLarge)
	}
	f.size = f.size<<8 | int(b)
	f.sizeLen--
	if f.sizeLen == 0 {
		d.stack[d.fp-1].stop = d.s.Offset() + f.size
		d.pop()
	}
	return nil
}

func (d *Decoder) runPrint(f *frame, partial bool) error {
	if f.cur < len(f.str) {
		if err := d.s.Put(f.str[f.cur]); err != nil {
			return err
		}
		f.cur++
		return nil
	}
	d.pop()
	if !partial {
		return micheline.ErrWindowFull
	}
	return nil
}

// runReadNum consumes one LEB128 group per call. Completed values are
// totalled and must fit an unsigned 64 bit integer.
func (d *Decoder) runReadNum(f *frame) error {
	b, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	done, err := d.num.Step(b)
	if err != nil {
		return d.wrap(err)
	}
	if !done {
		return nil
	}
	v, ok := d.num.Uint64()
	if !ok {
		return d.fail(micheline.ErrInvalidData)
	}
	switch f.kind {
	case fieldAmount:
		d.totalAmount += v
	case fieldFee:
		d.totalFee += v
	}
	if f.skip {
		d.pop()
		return nil
	}
	switch f.kind {
	case fieldInt, fieldNat:
		f.str = d.num.Text()
	case fieldFee, fieldAmount:
		f.str = formatAmount(d.num.Text())
	default:
		return d.fail(micheline.ErrInvalidState)
	}
	f.step = stepPrint
	f.cur = 0
	return nil
}

func (d *Decoder) runReadInt32(f *frame) error {
	if f.cur < 4 {
		b, err := d.s.ReadByte()
		if err != nil {
			return err
		}
		f.val = f.val<<8 | int32(b)
		f.cur++
		return nil
	}
	d.capture = strconv.AppendInt(d.capture[:0], int64(f.val), 10)
	d.printCapture(f)
	return nil
}

// runReadBytes collects a fixed number of bytes, then renders them
// according to the field kind. Sources must agree across the batch.
func (d *Decoder) runReadBytes(f *frame) error {
	if f.cur < f.size {
		b, err := d.s.ReadByte()
		if err != nil {
			return err
		}
		d.capture = append(d.capture, b)
		f.cur++
		return nil
	}
	if f.skip {
		d.pop()
		return nil
	}
	var str string
	var ok bool
	switch f.kind {
	case fieldSource:
		if len(d.source) == 0 {
			d.source = append(d.source, d.capture...)
		} else if !bytes.Equal(d.source, d.capture) {
			return d.fail(micheline.ErrInvalidData)
		}
		str, ok = formatPKH(d.capture)
	case fieldPKH:
		str, ok = formatPKH(d.capture)
	case fieldPK:
		str, ok = formatPK(d.capture)
	case fieldSR:
		str, ok = b58.CheckEncode(b58.SmartRollup, d.capture), true
	case fieldSRC:
		str, ok = b58.CheckEncode(b58.SmartRollupHash, d.capture), true
	case fieldProto:
		str, ok = b58.CheckEncode(b58.Protocol, d.capture), true
	case fieldDestination:
		str, ok = formatAddress(d.capture)
	default:
		return d.fail(micheline.ErrInvalidState)
	}
	if !ok {
		return d.fail(micheline.ErrInvalidTag)
	}
	f.step = stepPrint
	f.str = str
	f.cur = 0
	return nil
}

// runReadPK peeks the key tag to learn how long the key is, then reads
// it like any tagged byte field.
func (d *Decoder) runReadPK(f *frame) error {
	b, err := d.s.PeekByte()
	if err != nil {
		return err
	}
	f.kind = fieldPK
	f.cur = 0
	d.capture = d.capture[:0]
	switch b {
	case 0: // edpk
		f.size = 33
	case 1: // sppk
		f.size = 34
	case 2: // p2pk
		f.size = 34
	case 3: // BLpk
		f.size = 49
	default:
		return d.fail(micheline.ErrInvalidTag)
	}
	f.step = stepReadBytes
	return nil
}

func (d *Decoder) runReadString(f *frame) error {
	if d.s.Offset() == f.stop {
		d.printCapture(f)
		return nil
	}
	b, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	d.capture = append(d.capture, b)
	return nil
}

// runReadBinary hex dumps sized content, flushing a partial chunk
// whenever the capture fills up.
func (d *Decoder) runReadBinary(f *frame) error {
	switch {
	case d.s.Offset() == f.stop:
		d.printCapture(f)
	case len(d.capture)+2 >= captureSize:
		chunk := string(d.capture)
		d.capture = d.capture[:0]
		if !f.skip {
			nf, err := d.push(stepPartialPrint)
			if err != nil {
				return err
			}
			nf.str = chunk
		}
	default:
		b, err := d.s.ReadByte()
		if err != nil {
			return err
		}
		d.capture = append(d.capture, hexLower[b>>4], hexLower[b&0x0f])
	}
	return nil
}

// runReadEntrypoint resolves the compact entrypoint tags, 0xff being a
// length-prefixed literal name.
func (d *Decoder) runReadEntrypoint(f *frame) error {
	b, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	switch {
	case int(b) < len(entrypointNames):
		d.capture = append(d.capture[:0], entrypointNames[b]...)
		d.printCapture(f)
	case b == 0xff:
		f.step = stepReadString
		d.capture = d.capture[:0]
		return d.beginSized(1)
	default:
		return d.fail(micheline.ErrInvalidTag)
	}
	return nil
}

// runReadMicheline drives an embedded Micheline decode over the same
// stream. Unit parameters downgrade the field to non complex.
func (d *Decoder) runReadMicheline(f *frame) error {
	if !f.inited {
		f.inited = true
		d.field.Name = f.name
		d.mich = micheline.NewDecoder(d.s)
	}
	if err := d.mich.Run(); err != nil {
		return err
	}
	if d.mich.IsUnit() {
		d.field.Complex = false
	}
	if f.stop != 0 && d.s.Offset() != f.stop {
		return d.fail(micheline.ErrTooLarge)
	}
	d.pop()
	if !d.done && d.s.Pending() > 0 {
		return micheline.ErrWindowFull
	}
	return nil
}

func (d *Decoder) runReadSoruKind(f *frame) error {
	b, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	if int(b) >= len(rollupKindNames) {
		return d.fail(micheline.ErrInvalidTag)
	}
	d.capture = append(d.capture[:0], rollupKindNames[b]...)
	d.printCapture(f)
	return nil
}

func (d *Decoder) runReadBallot(f *frame) error {
	b, err := d.s.ReadByte()
	if err != nil {
		return err
	}
	if int(b) >= len(ballotNames) {
		return d.fail(micheline.ErrInvalidTag)
	}
	d.capture = append(d.capture[:0], ballotNames[b]...)
	d.printCapture(f)
	return nil
}

// runReadList schedules one list element per call, naming each after
// the list and its position.
func (d *Decoder) runReadList(f *frame) error {
	// finished value from the previous element goes out first
	if d.s.Pending() > 0 {
		return micheline.ErrWindowFull
	}
	if f.stop == d.s.Offset() {
		d.pop()
		return nil
	}
	idx := f.index
	f.index++
	name := fmt.Sprintf("%s (%d)", f.name, idx)

	switch f.step {
	case stepReadProtos:
		nf, err := d.push(stepReadBytes)
		if err != nil {
			return err
		}
		d.field.Name = name
		nf.kind = fieldProto
		nf.skip = f.skip
		nf.size = 32
		d.capture = d.capture[:0]
	case stepReadPKHList:
		nf, err := d.push(stepReadBytes)
		if err != nil {
			return err
		}
		d.field.Name = name
		nf.kind = fieldPKH
		nf.skip = f.skip
		nf.size = 21
		d.capture = d.capture[:0]
	case stepReadSoruMessages:
		nf, err := d.push(stepReadBinary)
		if err != nil {
			return err
		}
		d.field.Name = name
		nf.skip = f.skip
		d.capture = d.capture[:0]
		return d.beginSized(4)
	}
	return nil
}
