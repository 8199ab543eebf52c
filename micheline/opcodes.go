package micheline

import "fmt"

// Opcode numbers a Michelson primitive the way it is encoded on wire.
type Opcode uint8

// OpUnit is the one primitive the decoders single out: an expression
// whose root is a bare Unit stands for an empty parameter.
const OpUnit Opcode = 11

// opcodeNames lists every known primitive in wire order.
var opcodeNames = [...]string{
	// 0
	"parameter", "storage", "code", "False", "Elt",
	"Left", "None", "Pair", "Right", "Some",
	// 10
	"True", "Unit", "PACK", "UNPACK", "BLAKE2B",
	"SHA256", "SHA512", "ABS", "ADD", "AMOUNT",
	// 20
	"AND", "BALANCE", "CAR", "CDR", "CHECK_SIGNATURE",
	"COMPARE", "CONCAT", "CONS", "CREATE_ACCOUNT", "CREATE_CONTRACT",
	// 30
	"IMPLICIT_ACCOUNT", "DIP", "DROP", "DUP", "EDIV",
	"EMPTY_MAP", "EMPTY_SET", "EQ", "EXEC", "FAILWITH",
	// 40
	"GE", "GET", "GT", "HASH_KEY", "IF",
	"IF_CONS", "IF_LEFT", "IF_NONE", "INT", "LAMBDA",
	// 50
	"LE", "LEFT", "LOOP", "LSL", "LSR",
	"LT", "MAP", "MEM", "MUL", "NEG",
	// 60
	"NEQ", "NIL", "NONE", "NOT", "NOW",
	"OR", "PAIR", "PUSH", "RIGHT", "SIZE",
	// 70
	"SOME", "SOURCE", "SENDER", "SELF", "STEPS_TO_QUOTA",
	"SUB", "SWAP", "TRANSFER_TOKENS", "SET_DELEGATE", "UNIT",
	// 80
	"UPDATE", "XOR", "ITER", "LOOP_LEFT", "ADDRESS",
	"CONTRACT", "ISNAT", "CAST", "RENAME", "bool",
	// 90
	"contract", "int", "key", "key_hash", "lambda",
	"list", "map", "big_map", "nat", "option",
	// 100
	"or", "pair", "set", "signature", "string",
	"bytes", "mumav", "timestamp", "unit", "operation",
	// 110
	"address", "SLICE", "DIG", "DUG", "EMPTY_BIG_MAP",
	"APPLY", "chain_id", "CHAIN_ID", "LEVEL", "SELF_ADDRESS",
	// 120
	"never", "NEVER", "UNPAIR", "VOTING_POWER", "TOTAL_VOTING_POWER",
	"KECCAK", "SHA3", "PAIRING_CHECK", "bls12_381_g1", "bls12_381_g2",
	// 130
	"bls12_381_fr", "sapling_state", "sapling_transaction_deprecated", "SAPLING_EMPTY_STATE", "SAPLING_VERIFY_UPDATE",
	"ticket", "TICKET_DEPRECATED", "READ_TICKET", "SPLIT_TICKET", "JOIN_TICKETS",
	// 140
	"GET_AND_UPDATE", "chest", "chest_key", "OPEN_CHEST", "VIEW",
	"view", "constant", "SUB_MUMAV", "tx_rollup_l2_address", "MIN_BLOCK_TIME",
	// 150
	"sapling_transaction", "EMIT", "Lambda_rec", "LAMBDA_REC", "TICKET",
	"BYTES", "NAT", "Ticket",
}

// Valid reports whether the opcode maps to a known primitive.
func (op Opcode) Valid() bool { return int(op) < len(opcodeNames) }

// Name returns the Michelson rendering of the primitive.
func (op Opcode) Name() (string, bool) {
	if !op.Valid() {
		return "", false
	}
	return opcodeNames[op], true
}

func (op Opcode) String() string {
	if name, ok := op.Name(); ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}
