package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func HashToCurve(message []byte) *secp256k1.PublicKey {
	var point *secp256k1.PublicKey

	for point == nil || !point.IsOnCurve() {
		hash := sha256.Sum256(message)
		pkhash := append([]byte{0x02}, hash[:]...)
		point, _ = secp256k1.ParsePubKey(pkhash)
		message = hash[:]
	}
	return point
}

// B_ = Y + rG
func BlindMessage(secret []byte, blindingFactor []byte) (*secp256k1.PublicKey, *secp256k1.PrivateKey) {
	var ypoint, rpoint, blindedMessage secp256k1.JacobianPoint

	Y := HashToCurve(secret)
	Y.AsJacobian(&ypoint)

	r, rpub := btcec.PrivKeyFromBytes(blindingFactor)
	rpub.AsJacobian(&rpoint)

	// blindedMessage = Y + rG (rpub)
	secp256k1.AddNonConst(&ypoint, &rpoint, &blindedMessage)
	blindedMessage.ToAffine()
	B_ := secp256k1.NewPublicKey(&blindedMessage.X, &blindedMessage.Y)

	return B_, r
}

// C_ = kB_
func SignBlindedMessage(B_ *secp256k1.PublicKey, k *secp256k1.PrivateKey) *secp256k1.PublicKey {
	var bpoint, result secp256k1.JacobianPoint
	B_.AsJacobian(&bpoint)

	// result = k * B_
	secp256k1.ScalarMultNonConst(&k.Key, &bpoint, &result)
	result.ToAffine()
	C_ := secp256k1.NewPublicKey(&result.X, &result.Y)

	return C_
}

// C = C_ - rK
func UnblindSignature(C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey,
	K *secp256k1.PublicKey) *secp256k1.PublicKey {

	var Kpoint, rKPoint, CPoint secp256k1.JacobianPoint
	K.AsJacobian(&Kpoint)

	var rNeg secp256k1.ModNScalar
	rNeg.NegateVal(&r.Key)

	secp256k1.ScalarMultNonConst(&rNeg, &Kpoint, &rKPoint)

	var C_Point secp256k1.JacobianPoint
	C_.AsJacobian(&C_Point)
	secp256k1.AddNonConst(&C_Point, &rKPoint, &CPoint)
	CPoint.ToAffine()

	C := secp256k1.NewPublicKey(&CPoint.X, &CPoint.Y)
	return C
}

// k * HashToCurve(secret) == C
func Verify(secret []byte, k *secp256k1.PrivateKey, C *secp256k1.PublicKey) bool {
	var Ypoint, result secp256k1.JacobianPoint
	Y := HashToCurve(secret)
	Y.AsJacobian(&Ypoint)

	secp256k1.ScalarMultNonConst(&k.Key, &Ypoint, &result)
	result.ToAffine()
	pk := secp256k1.NewPublicKey(&result.X, &result.Y)

	return C.IsEqual(pk)
}

// dleqChallenge hashes the four points of a DLEQ proof into a scalar mod n.
// e = H(R1, R2, K, C_), where each point enters the hash as the lowercase hex
// string of its uncompressed serialization, the four strings concatenated.
func dleqChallenge(R1, R2, K, C_ *secp256k1.PublicKey) *secp256k1.ModNScalar {
	h := sha256.New()
	for _, p := range []*secp256k1.PublicKey{R1, R2, K, C_} {
		h.Write([]byte(hex.EncodeToString(p.SerializeUncompressed())))
	}
	digest := h.Sum(nil)

	var e secp256k1.ModNScalar
	e.SetByteSlice(digest)
	return &e
}

// GenerateDLEQ produces a non-interactive Chaum-Pedersen proof that the same
// private key k was used to compute C_ = kB_ as was used for K = kG, without
// revealing k. It picks a random nonce p, computes R1 = pG and R2 = pB_, the
// challenge e = H(R1, R2, K, C_) and the response s = p + ek mod n.
// e and s are returned as PrivateKey wrappers so callers can serialize them
// with the same Serialize() used for DLEQProof.E/S elsewhere.
func GenerateDLEQ(k *secp256k1.PrivateKey, B_, C_ *secp256k1.PublicKey) (e, s *secp256k1.PrivateKey) {
	var pBytes [32]byte
	var p *secp256k1.PrivateKey
	for {
		if _, err := rand.Read(pBytes[:]); err != nil {
			continue
		}
		var scalar secp256k1.ModNScalar
		overflow := scalar.SetBytes(&pBytes)
		if overflow == 0 && !scalar.IsZero() {
			p = secp256k1.NewPrivateKey(&scalar)
			break
		}
	}

	var r1Point secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&p.Key, &r1Point)
	r1Point.ToAffine()
	R1 := secp256k1.NewPublicKey(&r1Point.X, &r1Point.Y)

	var bPoint, r2Point secp256k1.JacobianPoint
	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&p.Key, &bPoint, &r2Point)
	r2Point.ToAffine()
	R2 := secp256k1.NewPublicKey(&r2Point.X, &r2Point.Y)

	K := k.PubKey()

	challenge := dleqChallenge(R1, R2, K, C_)

	var response secp256k1.ModNScalar
	response.Mul2(challenge, &k.Key).Add(&p.Key)

	return secp256k1.NewPrivateKey(challenge), secp256k1.NewPrivateKey(&response)
}

// negate returns -P for an affine-form Jacobian point.
func negate(p *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var neg secp256k1.JacobianPoint
	neg.X.Set(&p.X)
	neg.Y.Set(&p.Y).Negate(1).Normalize()
	neg.Z.SetInt(1)
	return neg
}

// VerifyDLEQ checks a Chaum-Pedersen proof (e, s) for K = kG, C_ = kB_ by
// recomputing R1 = sG - eK and R2 = sB_ - eC_ and comparing H(R1, R2, K, C_)
// against e.
func VerifyDLEQ(e, s *secp256k1.PrivateKey, K, B_, C_ *secp256k1.PublicKey) bool {
	var kPoint, eKPoint, sGPoint, r1Point secp256k1.JacobianPoint
	K.AsJacobian(&kPoint)
	secp256k1.ScalarMultNonConst(&e.Key, &kPoint, &eKPoint)
	eKPoint.ToAffine()
	negEK := negate(&eKPoint)

	secp256k1.ScalarBaseMultNonConst(&s.Key, &sGPoint)
	secp256k1.AddNonConst(&sGPoint, &negEK, &r1Point)
	r1Point.ToAffine()
	R1 := secp256k1.NewPublicKey(&r1Point.X, &r1Point.Y)

	var bPoint, sBPoint, cPoint, eCPoint, r2Point secp256k1.JacobianPoint
	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&s.Key, &bPoint, &sBPoint)

	C_.AsJacobian(&cPoint)
	secp256k1.ScalarMultNonConst(&e.Key, &cPoint, &eCPoint)
	eCPoint.ToAffine()
	negEC := negate(&eCPoint)

	secp256k1.AddNonConst(&sBPoint, &negEC, &r2Point)
	r2Point.ToAffine()
	R2 := secp256k1.NewPublicKey(&r2Point.X, &r2Point.Y)

	expected := dleqChallenge(R1, R2, K, C_)
	return expected.Equals(&e.Key)
}
