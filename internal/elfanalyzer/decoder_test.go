package elfanalyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func TestX86Decoder_Decode(t *testing.T) {
	decoder := NewX86Decoder()

	tests := []struct {
		name    string
		code    []byte
		wantOp  x86asm.Op
		wantLen int
	}{
		{
			name:    "nop",
			code:    []byte{0x90},
			wantOp:  x86asm.NOP,
			wantLen: 1,
		},
		{
			name:    "syscall",
			code:    []byte{0x0f, 0x05},
			wantOp:  x86asm.SYSCALL,
			wantLen: 2,
		},
		{
			name:    "mov eax immediate",
			code:    []byte{0xb8, 0x29, 0x00, 0x00, 0x00},
			wantOp:  x86asm.MOV,
			wantLen: 5,
		},
		{
			name:    "ret",
			code:    []byte{0xc3},
			wantOp:  x86asm.RET,
			wantLen: 1,
		},
		{
			name:    "trailing bytes are not consumed",
			code:    []byte{0xc3, 0x90, 0x90},
			wantOp:  x86asm.RET,
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := decoder.Decode(tt.code, 0x1000)
			require.NoError(t, err)

			assert.Equal(t, tt.wantOp, inst.Op)
			assert.Equal(t, tt.wantLen, inst.Len)
			assert.Equal(t, uint64(0x1000), inst.Offset)
			assert.Equal(t, uint64(0x1000+tt.wantLen), inst.Next())
		})
	}
}

func TestX86Decoder_Decode_Error(t *testing.T) {
	decoder := NewX86Decoder()

	t.Run("empty", func(t *testing.T) {
		_, err := decoder.Decode([]byte{}, 0)
		assert.Error(t, err)
	})

	t.Run("truncated call", func(t *testing.T) {
		_, err := decoder.Decode([]byte{0xe8, 0x00}, 0)
		assert.Error(t, err)
	})
}

func TestX86Decoder_IsSyscallInstruction(t *testing.T) {
	decoder := NewX86Decoder()

	tests := []struct {
		name       string
		code       []byte
		want       bool
		wantLegacy bool
	}{
		{
			name: "syscall instruction",
			code: []byte{0x0f, 0x05},
			want: true,
		},
		{
			name:       "sysenter",
			code:       []byte{0x0f, 0x34},
			want:       true,
			wantLegacy: true,
		},
		{
			name:       "int 0x80",
			code:       []byte{0xcd, 0x80},
			want:       true,
			wantLegacy: true,
		},
		{
			name: "int3",
			code: []byte{0xcc},
			want: false,
		},
		{
			name: "nop instruction",
			code: []byte{0x90},
			want: false,
		},
		{
			name: "mov instruction",
			code: []byte{0xb8, 0x00, 0x00, 0x00, 0x00},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := decoder.Decode(tt.code, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decoder.IsSyscallInstruction(inst))
			assert.Equal(t, tt.wantLegacy, decoder.IsLegacySyscall(inst))
		})
	}
}

func TestX86Decoder_ModifiesEAXorRAX(t *testing.T) {
	decoder := NewX86Decoder()

	tests := []struct {
		name string
		code []byte
		want bool
	}{
		{
			name: "mov immediate to eax",
			code: []byte{0xb8, 0x29, 0x00, 0x00, 0x00},
			want: true,
		},
		{
			name: "mov immediate to rax",
			code: []byte{0x48, 0xc7, 0xc0, 0x29, 0x00, 0x00, 0x00},
			want: true,
		},
		{
			name: "xor eax, eax",
			code: []byte{0x31, 0xc0},
			want: true,
		},
		{
			name: "mov rbx to rax",
			code: []byte{0x48, 0x89, 0xd8},
			want: true,
		},
		{
			name: "syscall returns in rax",
			code: []byte{0x0f, 0x05},
			want: true,
		},
		{
			name: "cmp rax, 1 only reads",
			code: []byte{0x48, 0x83, 0xf8, 0x01},
			want: false,
		},
		{
			name: "mov immediate to edi",
			code: []byte{0xbf, 0x29, 0x00, 0x00, 0x00},
			want: false,
		},
		{
			name: "nop",
			code: []byte{0x90},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := decoder.Decode(tt.code, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decoder.ModifiesEAXorRAX(inst))
		})
	}
}

func TestX86Decoder_SyscallLeavesEDI(t *testing.T) {
	decoder := NewX86Decoder()

	inst, err := decoder.Decode([]byte{0x0f, 0x05}, 0)
	require.NoError(t, err)
	assert.False(t, decoder.ModifiesEDIorRDI(inst))
}

func TestX86Decoder_IsImmediateMove(t *testing.T) {
	decoder := NewX86Decoder()

	tests := []struct {
		name      string
		code      []byte
		wantIsImm bool
		wantValue int64
	}{
		{
			name:      "mov eax, 41",
			code:      []byte{0xb8, 0x29, 0x00, 0x00, 0x00},
			wantIsImm: true,
			wantValue: 41,
		},
		{
			name:      "mov rax, 42",
			code:      []byte{0x48, 0xc7, 0xc0, 0x2a, 0x00, 0x00, 0x00},
			wantIsImm: true,
			wantValue: 42,
		},
		{
			name:      "xor eax, eax",
			code:      []byte{0x31, 0xc0},
			wantIsImm: true,
			wantValue: 0,
		},
		{
			name:      "xor eax, ebx is not a zeroing idiom",
			code:      []byte{0x31, 0xd8},
			wantIsImm: false,
		},
		{
			name:      "mov rbx to rax",
			code:      []byte{0x48, 0x89, 0xd8},
			wantIsImm: false,
		},
		{
			name:      "mov al, 1 writes only the low byte",
			code:      []byte{0xb0, 0x01},
			wantIsImm: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := decoder.Decode(tt.code, 0)
			require.NoError(t, err)
			isImm, value := decoder.IsImmediateMove(inst)
			assert.Equal(t, tt.wantIsImm, isImm)
			if tt.wantIsImm {
				assert.Equal(t, tt.wantValue, value)
			}
		})
	}
}

func TestX86Decoder_IsImmediateMoveToEDI(t *testing.T) {
	decoder := NewX86Decoder()

	inst, err := decoder.Decode([]byte{0xbf, 0x29, 0x00, 0x00, 0x00}, 0)
	require.NoError(t, err)
	assert.True(t, decoder.ModifiesEDIorRDI(inst))
	isImm, value := decoder.IsImmediateMoveToEDI(inst)
	assert.True(t, isImm)
	assert.Equal(t, int64(41), value)

	isImm, _ = decoder.IsImmediateMove(inst)
	assert.False(t, isImm)
}

func TestX86Decoder_IsControlFlowInstruction(t *testing.T) {
	decoder := NewX86Decoder()

	tests := []struct {
		name string
		code []byte
		want bool
	}{
		{name: "call rel32", code: []byte{0xe8, 0x00, 0x00, 0x00, 0x00}, want: true},
		{name: "jmp short", code: []byte{0xeb, 0x00}, want: true},
		{name: "je short", code: []byte{0x74, 0x00}, want: true},
		{name: "ret", code: []byte{0xc3}, want: true},
		{name: "nop", code: []byte{0x90}, want: false},
		{name: "mov", code: []byte{0xb8, 0x01, 0x00, 0x00, 0x00}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := decoder.Decode(tt.code, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decoder.IsControlFlowInstruction(inst))
		})
	}
}

func TestX86Decoder_BranchTarget(t *testing.T) {
	decoder := NewX86Decoder()

	tests := []struct {
		name   string
		code   []byte
		want   uint64
		wantOK bool
	}{
		{
			name:   "call next instruction",
			code:   []byte{0xe8, 0x00, 0x00, 0x00, 0x00},
			want:   0x1005,
			wantOK: true,
		},
		{
			name:   "jmp rel32 backward",
			code:   []byte{0xe9, 0xfb, 0xff, 0xff, 0xff},
			want:   0x1000,
			wantOK: true,
		},
		{
			name:   "call forward",
			code:   []byte{0xe8, 0xfb, 0x0f, 0x00, 0x00},
			want:   0x2000,
			wantOK: true,
		},
		{
			name:   "call through register",
			code:   []byte{0xff, 0xd0},
			wantOK: false,
		},
		{
			name:   "conditional jump is not a call",
			code:   []byte{0x74, 0x00},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := decoder.Decode(tt.code, 0x1000)
			require.NoError(t, err)
			got, ok := decoder.BranchTarget(inst)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestX86Decoder_MemorySlot(t *testing.T) {
	decoder := NewX86Decoder()

	tests := []struct {
		name   string
		code   []byte
		want   uint64
		wantOK bool
	}{
		{
			name:   "call via rip relative slot",
			code:   []byte{0xff, 0x15, 0xfa, 0x0f, 0x00, 0x00},
			want:   0x2000,
			wantOK: true,
		},
		{
			name:   "jmp via rip relative slot",
			code:   []byte{0xff, 0x25, 0xfa, 0x0f, 0x00, 0x00},
			want:   0x2000,
			wantOK: true,
		},
		{
			name:   "call via register",
			code:   []byte{0xff, 0xd0},
			wantOK: false,
		},
		{
			name:   "call via register memory",
			code:   []byte{0xff, 0x10},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := decoder.Decode(tt.code, 0x1000)
			require.NoError(t, err)
			got, ok := decoder.MemorySlot(inst)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
