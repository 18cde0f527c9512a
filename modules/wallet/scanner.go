package wallet

import (
	"github.com/kryptokrona/kryptokrona-walletcore-go/crypto"
	"github.com/kryptokrona/kryptokrona-walletcore-go/types"
)

// scanTarget is one bucket's identity as needed by the scanner: its public
// spend key, and its private spend key when it has one (nil for view-only).
type scanTarget struct {
	publicSpendKey  types.Key
	privateSpendKey *types.Key
}

// ScanBlockOutputs checks every output of one transaction against
// targets, returning one FoundOutput per match. privateViewKey is the
// wallet's single shared view key (every subwallet shares one view key per
// the specification's single-view-key-per-wallet model).
//
// Grounded on the teacher's modules/wallet/update.go output-scanning pass;
// generalized from Sia's unlock-hash matching to CryptoNote's
// derive/underive stealth-address recognition. Two paths exist because the
// specification calls out DerivePublicKey as a documented optimization when
// the wallet has exactly one subwallet: it avoids computing a candidate
// spend key per candidate output, instead checking the expected output key
// for its one known spend key directly.
func ScanBlockOutputs(provider crypto.Provider, privateViewKey types.Key, targets []scanTarget, tx types.RawTransaction) ([]FoundOutput, error) {
	if tx.TxPublicKey.IsZero() {
		return nil, nil
	}
	derivation, err := provider.KeyDerivation(tx.TxPublicKey, privateViewKey)
	if err != nil {
		return nil, err
	}

	var found []FoundOutput
	if len(targets) == 1 {
		out, err := scanSingleSpendKey(provider, derivation, targets[0], tx)
		if err != nil {
			return nil, err
		}
		found = out
	} else {
		out, err := scanMultipleSpendKeys(provider, derivation, targets, tx)
		if err != nil {
			return nil, err
		}
		found = out
	}
	return found, nil
}

// FoundOutput is a match produced by the scanner, ready to become a
// types.TransactionInput once the caller assigns BlockHeight/TransactionIndex.
type FoundOutput struct {
	Owner       types.Key
	OutputIndex uint64
	Output      types.KeyOutput
}

func scanSingleSpendKey(provider crypto.Provider, derivation types.Key, target scanTarget, tx types.RawTransaction) ([]FoundOutput, error) {
	var found []FoundOutput
	for i, out := range tx.KeyOutputs {
		expected, err := provider.DerivePublicKey(derivation, uint64(i), target.publicSpendKey)
		if err != nil {
			return nil, err
		}
		if expected == out.Key {
			found = append(found, FoundOutput{Owner: target.publicSpendKey, OutputIndex: uint64(i), Output: out})
		}
	}
	return found, nil
}

func scanMultipleSpendKeys(provider crypto.Provider, derivation types.Key, targets []scanTarget, tx types.RawTransaction) ([]FoundOutput, error) {
	owners := make(map[types.Key]struct{}, len(targets))
	for _, t := range targets {
		owners[t.publicSpendKey] = struct{}{}
	}

	var found []FoundOutput
	for i, out := range tx.KeyOutputs {
		candidate, err := provider.UnderivePublicKey(derivation, uint64(i), out.Key)
		if err != nil {
			return nil, err
		}
		if _, ok := owners[candidate]; ok {
			found = append(found, FoundOutput{Owner: candidate, OutputIndex: uint64(i), Output: out})
		}
	}
	return found, nil
}
