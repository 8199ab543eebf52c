package operation

// Operation tags as encoded on wire.
const (
	tagProposals                = 5
	tagBallot                   = 6
	tagFailingNoop              = 17
	tagReveal                   = 107
	tagTransaction              = 108
	tagOrigination              = 109
	tagDelegation               = 110
	tagRegisterGlobalConstant   = 111
	tagSetDepositLimit          = 112
	tagIncreasePaidStorage      = 113
	tagUpdateConsensusKey       = 114
	tagTransferTicket           = 158
	tagSmartRollupOriginate     = 200
	tagSmartRollupAddMessages   = 201
	tagSmartRollupExecuteOutbox = 206
)

type fieldKind uint8

const (
	fieldOption fieldKind = iota + 1
	fieldTuple
	fieldBinary
	fieldSource
	fieldPKH
	fieldPK
	fieldSR
	fieldSRC
	fieldProto
	fieldProtos
	fieldDestination
	fieldNat
	fieldFee
	fieldAmount
	fieldInt
	fieldInt32
	fieldEntrypoint
	fieldExpr
	fieldString
	fieldSoruMessages
	fieldSoruKind
	fieldPKHList
	fieldBallot
	fieldBranchHash
)

// fieldDesc describes one wire field of an operation: the screen name
// shown while its value streams, how to read it, and whether the value
// is skipped or flagged for expert review. Names starting with an
// underscore belong to wrappers and skipped fields that never reach a
// screen of their own.
type fieldDesc struct {
	name    string
	kind    fieldKind
	skip    bool
	complex bool

	// fieldOption: the wrapped field, and whether its absence prints
	// a "Field unset" screen instead of being silent.
	inner       *fieldDesc
	displayNone bool

	// fieldTuple
	fields []fieldDesc
}

type opDesc struct {
	tag    byte
	name   string
	fields []fieldDesc
}

// managerFields prefixes the fields every manager operation carries.
// Counter and gas limit are consumed but never shown.
func managerFields(rest ...fieldDesc) []fieldDesc {
	fields := []fieldDesc{
		{name: "Source", kind: fieldSource},
		{name: "Fee", kind: fieldFee},
		{name: "_Counter", kind: fieldNat, skip: true},
		{name: "_Gas", kind: fieldNat, skip: true},
		{name: "Storage limit", kind: fieldNat},
	}
	return append(fields, rest...)
}

var operations = []opDesc{
	{tagProposals, "Proposals", []fieldDesc{
		{name: "Source", kind: fieldPKH},
		{name: "Period", kind: fieldInt32},
		{name: "Proposal", kind: fieldProtos},
	}},
	{tagBallot, "Ballot", []fieldDesc{
		{name: "Source", kind: fieldPKH},
		{name: "Period", kind: fieldInt32},
		{name: "Proposal", kind: fieldProto},
		{name: "Ballot", kind: fieldBallot},
	}},
	{tagFailingNoop, "Failing noop", []fieldDesc{
		{name: "Message", kind: fieldBinary},
	}},
	{tagReveal, "Reveal", managerFields(
		fieldDesc{name: "Public key", kind: fieldPK},
	)},
	{tagTransaction, "Transaction", managerFields(
		fieldDesc{name: "Amount", kind: fieldAmount},
		fieldDesc{name: "Destination", kind: fieldDestination},
		fieldDesc{name: "_Parameters", kind: fieldOption, inner: &fieldDesc{
			name: "_Parameters", kind: fieldTuple, fields: []fieldDesc{
				{name: "Entrypoint", kind: fieldEntrypoint},
				{name: "Parameter", kind: fieldExpr, complex: true},
			},
		}},
	)},
	{tagOrigination, "Origination", managerFields(
		fieldDesc{name: "Balance", kind: fieldAmount},
		fieldDesc{name: "Delegate", kind: fieldOption, displayNone: true,
			inner: &fieldDesc{name: "Delegate", kind: fieldPKH}},
		fieldDesc{name: "Code", kind: fieldExpr, complex: true},
		fieldDesc{name: "Storage", kind: fieldExpr, complex: true},
	)},
	{tagDelegation, "Delegation", managerFields(
		fieldDesc{name: "Delegate", kind: fieldOption, displayNone: true,
			inner: &fieldDesc{name: "Delegate", kind: fieldPKH}},
	)},
	{tagRegisterGlobalConstant, "Register global constant", managerFields(
		fieldDesc{name: "Value", kind: fieldExpr, complex: true},
	)},
	{tagSetDepositLimit, "Set deposit limit", managerFields(
		fieldDesc{name: "Staking limit", kind: fieldOption, displayNone: true,
			inner: &fieldDesc{name: "Staking limit", kind: fieldAmount}},
	)},
	{tagIncreasePaidStorage, "Increase paid storage", managerFields(
		fieldDesc{name: "Amount", kind: fieldInt},
		fieldDesc{name: "Destination", kind: fieldDestination},
	)},
	{tagUpdateConsensusKey, "Set consensus key", managerFields(
		fieldDesc{name: "Public key", kind: fieldPK},
	)},
	{tagTransferTicket, "Transfer ticket", managerFields(
		fieldDesc{name: "Contents", kind: fieldExpr, complex: true},
		fieldDesc{name: "Type", kind: fieldExpr, complex: true},
		fieldDesc{name: "Ticketer", kind: fieldDestination},
		fieldDesc{name: "Amount", kind: fieldNat},
		fieldDesc{name: "Destination", kind: fieldDestination},
		fieldDesc{name: "Entrypoint", kind: fieldString},
	)},
	{tagSmartRollupAddMessages, "SR: send messages", managerFields(
		fieldDesc{name: "Message", kind: fieldSoruMessages},
	)},
	{tagSmartRollupExecuteOutbox, "SR: execute outbox message", managerFields(
		fieldDesc{name: "Rollup", kind: fieldSR},
		fieldDesc{name: "Commitment", kind: fieldSRC},
		fieldDesc{name: "Output proof", kind: fieldBinary, complex: true},
	)},
	{tagSmartRollupOriginate, "SR: originate", managerFields(
		fieldDesc{name: "Kind", kind: fieldSoruKind},
		fieldDesc{name: "Kernel", kind: fieldBinary, complex: true},
		fieldDesc{name: "Parameters", kind: fieldExpr, complex: true},
		fieldDesc{name: "Whitelist", kind: fieldOption,
			inner: &fieldDesc{name: "Whitelist", kind: fieldPKHList}},
	)},
}

func lookupOp(tag byte) *opDesc {
	for i := range operations {
		if operations[i].tag == tag {
			return &operations[i]
		}
	}
	return nil
}
