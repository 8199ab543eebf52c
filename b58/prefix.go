package b58

// Prefix pins a base58check prefix to the payload size it carries.
// Encoding a payload of exactly PayloadLen bytes under Bytes yields a
// string that always starts with Name.
type Prefix struct {
	Name       string
	Bytes      []byte
	PayloadLen int
}

var (
	// public key hashes (20 byte blake2b digests)
	PKHEd25519   = Prefix{"mv1", []byte{5, 186, 196}, 20}
	PKHSecp256k1 = Prefix{"mv2", []byte{5, 186, 199}, 20}
	PKHP256      = Prefix{"mv3", []byte{5, 186, 201}, 20}
	PKHBLS       = Prefix{"mv4", []byte{5, 186, 204}, 20}

	// other 20 byte address hashes
	Contract    = Prefix{"KT1", []byte{2, 90, 121}, 20}
	TxRollup    = Prefix{"txr1", []byte{1, 128, 120, 31}, 20}
	SmartRollup = Prefix{"sr1", []byte{6, 124, 117}, 20}
	ZkRollup    = Prefix{"zkr1", []byte{1, 171, 84, 251}, 20}

	// public keys
	PKEd25519   = Prefix{"edpk", []byte{13, 15, 37, 217}, 32}
	PKSecp256k1 = Prefix{"sppk", []byte{3, 254, 226, 86}, 33}
	PKP256      = Prefix{"p2pk", []byte{3, 178, 139, 127}, 33}
	PKBLS       = Prefix{"BLpk", []byte{6, 149, 135, 204}, 48}

	// signatures
	SigEd25519   = Prefix{"edsig", []byte{9, 245, 205, 134, 18}, 64}
	SigSecp256k1 = Prefix{"spsig1", []byte{13, 115, 101, 19, 63}, 64}
	SigP256      = Prefix{"p2sig", []byte{54, 240, 44, 52}, 64}
	SigBLS       = Prefix{"BLsig", []byte{40, 171, 64, 207}, 96}

	// 32 byte hashes
	Protocol        = Prefix{"P", []byte{2, 170}, 32}
	Operation       = Prefix{"o", []byte{5, 116}, 32}
	Block           = Prefix{"B", []byte{1, 52}, 32}
	ScriptExpr      = Prefix{"expr", []byte{13, 44, 64, 27}, 32}
	SmartRollupHash = Prefix{"src1", []byte{17, 165, 134, 138}, 32}
)
