package multimarkov

import "testing"

func TestRuneCodec(t *testing.T) {
	codec := RuneCodec{}
	for _, r := range []rune{'a', 'é', '世'} {
		decoded, err := codec.Decode(codec.Encode(r))
		if err != nil {
			t.Errorf("Decode(Encode(%q)) error = %v", r, err)
		}
		if decoded != r {
			t.Errorf("round trip of %q gave %q", r, decoded)
		}
	}

	for _, text := range []string{"", "ab", "\xff"} {
		if _, err := codec.Decode(text); err == nil {
			t.Errorf("Decode(%q) succeeded, want error", text)
		}
	}
}
