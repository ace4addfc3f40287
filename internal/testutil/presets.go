package testutil

// ProgramSource is a small well-formed program with a MAP, a procedure,
// a routine and nested control flow.
const ProgramSource = `  PROGRAM
  MAP
Main    PROCEDURE
  END
  CODE
  Main()

Main PROCEDURE
Count LONG
  CODE
  LOOP Count = 1 TO 10
    IF Count > 5 THEN BREAK.
  END
  DO Report

Report ROUTINE
  MESSAGE('done')
`

// ClassSource declares a class with a method prototype and implements it.
const ClassSource = `  MEMBER('app')
Counter CLASS,TYPE
Value     LONG
Bump      PROCEDURE(LONG n)
        END

Counter.Bump PROCEDURE(LONG n)
  CODE
  SELF.Value += n
`

// UnterminatedSource leaves an IF open until the next procedure and has a
// stray END at the end.
const UnterminatedSource = `First PROCEDURE
  CODE
  IF x = 1
    y = 2

Second PROCEDURE
  CODE
  y = 3
  END
`

// WithPresets adds the three presets with the three presets under src/.
func (b *Builder) WithPresets() *Builder {
	return b.
		WithFile("src/program.clw", ProgramSource).
		WithFile("src/counter.clw", ClassSource).
		WithFile("src/broken.clw", UnterminatedSource)
}
