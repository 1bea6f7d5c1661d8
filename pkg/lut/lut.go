// Package lut creates, extends and loads the address lookup table a launch bundle is
// compiled against.
package lut

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/constants"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/txbuilder"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// Address lookup table program instruction tags.
const (
	instructionCreate uint32 = 0
	instructionExtend uint32 = 2
)

// MetaSize is the fixed header preceding the stored addresses.
const MetaSize = 56

// DeriveAddress returns the table address for authority at recentSlot, and its bump.
func DeriveAddress(authority solana.PublicKey, recentSlot uint64) (solana.PublicKey, uint8, error) {
	slot := make([]byte, 8)
	binary.LittleEndian.PutUint64(slot, recentSlot)
	return solana.FindProgramAddress([][]byte{authority[:], slot}, constants.AddressLookupTableProgramID)
}

// CreateInstruction creates a table anchored at recentSlot, which must be a recent
// finalized slot or validators reject it.
func CreateInstruction(authority, payer solana.PublicKey, recentSlot uint64) (solana.Instruction, solana.PublicKey, error) {
	table, bump, err := DeriveAddress(authority, recentSlot)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive table address: %w", err)
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint32(instructionCreate, binary.LittleEndian); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if err := enc.WriteUint64(recentSlot, binary.LittleEndian); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if err := enc.WriteUint8(bump); err != nil {
		return nil, solana.PublicKey{}, err
	}

	ix := solana.NewInstruction(constants.AddressLookupTableProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(table, true, false),
		solana.NewAccountMeta(authority, false, true),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(constants.SystemProgramID, false, false),
	}, buf.Bytes())
	return ix, table, nil
}

// ExtendInstruction appends addrs to table. The program accepts at most
// constants.MaxExtendAddresses per call in practice, see Chunk.
func ExtendInstruction(table, authority, payer solana.PublicKey, addrs []solana.PublicKey) (solana.Instruction, error) {
	if len(addrs) == 0 {
		return nil, types.NewValidationError("addresses", "cannot be empty")
	}
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint32(instructionExtend, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(uint64(len(addrs)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if err := enc.WriteBytes(addr[:], false); err != nil {
			return nil, err
		}
	}

	return solana.NewInstruction(constants.AddressLookupTableProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(table, true, false),
		solana.NewAccountMeta(authority, false, true),
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(constants.SystemProgramID, false, false),
	}, buf.Bytes()), nil
}

// ExtendInstructions chunks addrs and returns one extend instruction per chunk.
func ExtendInstructions(table, authority, payer solana.PublicKey, addrs []solana.PublicKey) ([]solana.Instruction, error) {
	chunks := Chunk(addrs, constants.MaxExtendAddresses)
	out := make([]solana.Instruction, 0, len(chunks))
	for i, chunk := range chunks {
		ix, err := ExtendInstruction(table, authority, payer, chunk)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out = append(out, ix)
	}
	return out, nil
}

// CollectAddresses returns every distinct account referenced by the groups plus extras.
// Output order follows first appearance.
func CollectAddresses(groups []txbuilder.Group, extras ...solana.PublicKey) solana.PublicKeySlice {
	seen := make(map[solana.PublicKey]struct{})
	var out solana.PublicKeySlice
	add := func(pk solana.PublicKey) {
		if _, ok := seen[pk]; ok {
			return
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
	}
	for _, g := range groups {
		for _, ix := range g.Instructions {
			for _, meta := range ix.Accounts() {
				add(meta.PublicKey)
			}
		}
	}
	for _, pk := range extras {
		add(pk)
	}
	return out
}

// Chunk splits addrs into consecutive slices of at most size entries.
func Chunk(addrs []solana.PublicKey, size int) [][]solana.PublicKey {
	if size <= 0 {
		size = constants.MaxExtendAddresses
	}
	var out [][]solana.PublicKey
	for start := 0; start < len(addrs); start += size {
		end := start + size
		if end > len(addrs) {
			end = len(addrs)
		}
		out = append(out, addrs[start:end])
	}
	return out
}

// State is the decoded on-chain table account.
type State struct {
	DeactivationSlot           uint64
	LastExtendedSlot           uint64
	LastExtendedSlotStartIndex uint8
	Authority                  *solana.PublicKey
	Addresses                  solana.PublicKeySlice
}

// Active reports whether the table has not been deactivated.
func (s *State) Active() bool {
	return s.DeactivationSlot == ^uint64(0)
}

// DecodeState parses a lookup table account.
func DecodeState(data []byte) (*State, error) {
	if len(data) < MetaSize {
		return nil, fmt.Errorf("lookup table data too short: %d bytes", len(data))
	}
	if (len(data)-MetaSize)%solana.PublicKeyLength != 0 {
		return nil, fmt.Errorf("lookup table data misaligned: %d bytes", len(data))
	}

	dec := bin.NewBinDecoder(data[:MetaSize])
	kind, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if kind != 1 {
		return nil, fmt.Errorf("account is not a lookup table (type %d)", kind)
	}

	state := &State{}
	if state.DeactivationSlot, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if state.LastExtendedSlot, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, err
	}
	if state.LastExtendedSlotStartIndex, err = dec.ReadUint8(); err != nil {
		return nil, err
	}
	hasAuthority, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	if hasAuthority == 1 {
		raw, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return nil, err
		}
		authority := solana.PublicKeyFromBytes(raw)
		state.Authority = &authority
	}

	body := data[MetaSize:]
	state.Addresses = make(solana.PublicKeySlice, 0, len(body)/solana.PublicKeyLength)
	for off := 0; off < len(body); off += solana.PublicKeyLength {
		state.Addresses = append(state.Addresses, solana.PublicKeyFromBytes(body[off:off+solana.PublicKeyLength]))
	}
	return state, nil
}
