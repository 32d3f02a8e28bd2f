package domain

import "testing"

func TestNormalizePhoneNumber(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+12345678901", want: "+12345678901"},
		{in: "+1 (234) 567-8901", want: "+12345678901"},
		{in: " +44 20.7946.0958 ", want: "+442079460958"},
		{in: "+1234567", want: "+1234567"},
		{in: "+12345678901234", want: "+12345678901234"},
		{in: "12345", wantErr: true},
		{in: "+123456", wantErr: true},
		{in: "+1234567890123456", wantErr: true},
		{in: "+1234567890a", wantErr: true},
		{in: "", wantErr: true},
		{in: "+", wantErr: true},
	}

	for _, tc := range cases {
		got, err := NormalizePhoneNumber(tc.in)
		if tc.wantErr {
			if err != ErrInvalidPhoneFormat {
				t.Fatalf("NormalizePhoneNumber(%q): expected ErrInvalidPhoneFormat, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizePhoneNumber(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizePhoneNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
