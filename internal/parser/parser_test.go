package parser

import "testing"

func TestDetectCodes(t *testing.T) {
	d := NewCodeDetector()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"english", "Your verification code: 482913. Do not share it.", []string{"482913"}},
		{"turkish", "Giris icin dogrulama kodunuz 5531", []string{"5531"}},
		{"leading digits", "771204 is your login code", []string{"771204"}},
		{"pin", "PIN: 0420", []string{"0420"}},
		{"none", "See you at 10", nil},
		{"dedup", "code 1234, again code 1234", []string{"1234"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.DetectCodes(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("DetectCodes(%q) = %+v, want %v", tt.text, got, tt.want)
			}
			for i := range got {
				if got[i].Value != tt.want[i] {
					t.Errorf("code %d = %q, want %q", i, got[i].Value, tt.want[i])
				}
			}
		})
	}
}

func TestHTMLParse(t *testing.T) {
	html := `<html><head><style>p{}</style></head><body>
		<div class="banner">Forwarded by Gateway</div>
		<div class="sms"><p>Hello&nbsp;there</p><p>second   line</p></div>
		<div class="footer">Unsubscribe</div>
	</body></html>`

	got, err := NewHTMLParser("").Parse(html)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "Forwarded by Gateway\nHello there\nsecond line\nUnsubscribe"
	if got != want {
		t.Fatalf("Parse = %q, want %q", got, want)
	}

	got, err = NewHTMLParser(".sms").Parse(html)
	if err != nil {
		t.Fatalf("Parse with selector: %v", err)
	}
	if got != "Hello there\nsecond line" {
		t.Fatalf("Parse with selector = %q", got)
	}

	got, _ = NewHTMLParser("").Parse("   ")
	if got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
