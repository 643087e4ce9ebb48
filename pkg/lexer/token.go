package lexer

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent  // main, foo, x
	TokenNumber // 42, 0x1F, 1.5f
	TokenString // "hello"
	TokenChar   // 'a'

	// Declaration keywords
	TokenTypedef       // typedef
	TokenUsing         // using
	TokenStruct        // struct
	TokenClass         // class
	TokenUnion         // union
	TokenInterface     // __interface
	TokenEnum          // enum
	TokenNamespace     // namespace
	TokenTemplate      // template
	TokenTypename      // typename
	TokenExtern        // extern
	TokenStatic        // static
	TokenInline        // inline
	TokenConstexpr     // constexpr
	TokenVirtual       // virtual
	TokenExplicit      // explicit
	TokenFriend        // friend
	TokenMutable       // mutable
	TokenOperator      // operator
	TokenPublic        // public
	TokenPrivate       // private
	TokenProtected     // protected
	TokenStaticAssert  // static_assert
	TokenNoexcept      // noexcept
	TokenThrow         // throw
	TokenDecltype      // decltype
	TokenAuto          // auto
	TokenConst         // const
	TokenVolatile      // volatile
	TokenSizeof        // sizeof
	TokenAlignas       // alignas
	TokenDeclspec      // __declspec
	TokenAttribute     // __attribute__
	TokenDefault       // default
	TokenDelete        // delete

	// Fundamental type keywords
	TokenVoid     // void
	TokenBool     // bool
	TokenChar_    // char
	TokenShort    // short
	TokenInt_     // int
	TokenLong     // long
	TokenSigned   // signed
	TokenUnsigned // unsigned
	TokenFloat    // float
	TokenDouble   // double
	TokenWchar    // wchar_t
	TokenChar8    // char8_t
	TokenChar16   // char16_t
	TokenChar32   // char32_t
	TokenInt8     // __int8
	TokenInt16    // __int16
	TokenInt32    // __int32
	TokenInt64    // __int64

	// Operators
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenAssign    // =
	TokenEq        // ==
	TokenNe        // !=
	TokenLt        // <
	TokenLe        // <=
	TokenGt        // >
	TokenGe        // >=
	TokenAnd       // &&
	TokenOr        // ||
	TokenNot       // !
	TokenAmpersand // &
	TokenPipe      // |
	TokenCaret     // ^
	TokenTilde     // ~
	TokenShl       // <<
	TokenShr       // >>
	TokenQuestion  // ?
	TokenColon     // :
	TokenScope     // ::
	TokenEllipsis  // ...

	// Compound assignment operators
	TokenPlusAssign    // +=
	TokenMinusAssign   // -=
	TokenStarAssign    // *=
	TokenSlashAssign   // /=
	TokenPercentAssign // %=
	TokenAndAssign     // &=
	TokenOrAssign      // |=
	TokenXorAssign     // ^=
	TokenShlAssign     // <<=
	TokenShrAssign     // >>=

	// Increment/decrement
	TokenIncrement // ++
	TokenDecrement // --

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenDot       // .
	TokenArrow     // ->
	TokenHash      // #
)

var tokenNames = map[TokenType]string{
	TokenEOF:           "EOF",
	TokenIllegal:       "ILLEGAL",
	TokenIdent:         "IDENT",
	TokenNumber:        "NUMBER",
	TokenString:        "STRING",
	TokenChar:          "CHAR",
	TokenTypedef:       "typedef",
	TokenUsing:         "using",
	TokenStruct:        "struct",
	TokenClass:         "class",
	TokenUnion:         "union",
	TokenInterface:     "__interface",
	TokenEnum:          "enum",
	TokenNamespace:     "namespace",
	TokenTemplate:      "template",
	TokenTypename:      "typename",
	TokenExtern:        "extern",
	TokenStatic:        "static",
	TokenInline:        "inline",
	TokenConstexpr:     "constexpr",
	TokenVirtual:       "virtual",
	TokenExplicit:      "explicit",
	TokenFriend:        "friend",
	TokenMutable:       "mutable",
	TokenOperator:      "operator",
	TokenPublic:        "public",
	TokenPrivate:       "private",
	TokenProtected:     "protected",
	TokenStaticAssert:  "static_assert",
	TokenNoexcept:      "noexcept",
	TokenThrow:         "throw",
	TokenDecltype:      "decltype",
	TokenAuto:          "auto",
	TokenConst:         "const",
	TokenVolatile:      "volatile",
	TokenSizeof:        "sizeof",
	TokenAlignas:       "alignas",
	TokenDeclspec:      "__declspec",
	TokenAttribute:     "__attribute__",
	TokenDefault:       "default",
	TokenDelete:        "delete",
	TokenVoid:          "void",
	TokenBool:          "bool",
	TokenChar_:         "char",
	TokenShort:         "short",
	TokenInt_:          "int",
	TokenLong:          "long",
	TokenSigned:        "signed",
	TokenUnsigned:      "unsigned",
	TokenFloat:         "float",
	TokenDouble:        "double",
	TokenWchar:         "wchar_t",
	TokenChar8:         "char8_t",
	TokenChar16:        "char16_t",
	TokenChar32:        "char32_t",
	TokenInt8:          "__int8",
	TokenInt16:         "__int16",
	TokenInt32:         "__int32",
	TokenInt64:         "__int64",
	TokenPlus:          "+",
	TokenMinus:         "-",
	TokenStar:          "*",
	TokenSlash:         "/",
	TokenPercent:       "%",
	TokenAssign:        "=",
	TokenEq:            "==",
	TokenNe:            "!=",
	TokenLt:            "<",
	TokenLe:            "<=",
	TokenGt:            ">",
	TokenGe:            ">=",
	TokenAnd:           "&&",
	TokenOr:            "||",
	TokenNot:           "!",
	TokenAmpersand:     "&",
	TokenPipe:          "|",
	TokenCaret:         "^",
	TokenTilde:         "~",
	TokenShl:           "<<",
	TokenShr:           ">>",
	TokenQuestion:      "?",
	TokenColon:         ":",
	TokenScope:         "::",
	TokenEllipsis:      "...",
	TokenPlusAssign:    "+=",
	TokenMinusAssign:   "-=",
	TokenStarAssign:    "*=",
	TokenSlashAssign:   "/=",
	TokenPercentAssign: "%=",
	TokenAndAssign:     "&=",
	TokenOrAssign:      "|=",
	TokenXorAssign:     "^=",
	TokenShlAssign:     "<<=",
	TokenShrAssign:     ">>=",
	TokenIncrement:     "++",
	TokenDecrement:     "--",
	TokenLParen:        "(",
	TokenRParen:        ")",
	TokenLBrace:        "{",
	TokenRBrace:        "}",
	TokenLBracket:      "[",
	TokenRBracket:      "]",
	TokenSemicolon:     ";",
	TokenComma:         ",",
	TokenDot:           ".",
	TokenArrow:         "->",
	TokenHash:          "#",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsFundamental reports whether t is a keyword of a fundamental type.
func (t TokenType) IsFundamental() bool {
	return t >= TokenVoid && t <= TokenInt64
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// keywords maps keyword strings to token types
var keywords = map[string]TokenType{}

func init() {
	for t := TokenTypedef; t <= TokenInt64; t++ {
		keywords[tokenNames[t]] = t
	}
	// Spellings accepted by MSVC and GCC for the same keywords.
	keywords["__inline"] = TokenInline
	keywords["__forceinline"] = TokenInline
	keywords["_Bool"] = TokenBool
	keywords["__const"] = TokenConst
	keywords["__volatile__"] = TokenVolatile
	keywords["__attribute"] = TokenAttribute
	keywords["__signed__"] = TokenSigned
	keywords["_Alignas"] = TokenAlignas
	keywords["_Static_assert"] = TokenStaticAssert
}

// LookupIdent returns the token type for an identifier (keyword or IDENT)
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}
