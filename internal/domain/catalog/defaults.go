package catalog

type colOpt func(*Column)

func required(c *Column)   { c.Required = true }
func fixed(c *Column)      { c.Updatable = false }
func readOnly(c *Column)   { c.ReadOnly, c.Updatable = true, false }
func searchable(c *Column) { c.Searchable = true }
func sortable(c *Column)   { c.Sortable = true }
func filterable(c *Column) { c.Filterable = true }
func money(c *Column)      { c.Money, c.Sortable = true, true }

func enum(values ...string) colOpt {
	return func(c *Column) {
		c.Enum = values
		c.Filterable = true
	}
}

func def(v any) colOpt {
	return func(c *Column) { c.Default = v }
}

func col(name, label string, t ColumnType, opts ...colOpt) Column {
	c := Column{Name: name, Label: label, Type: t, Updatable: true}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func text(name, label string, opts ...colOpt) Column {
	return col(name, label, TypeText, opts...)
}

func numeric(name, label string, opts ...colOpt) Column {
	return col(name, label, TypeNumeric, opts...)
}

func date(name, label string, opts ...colOpt) Column {
	return col(name, label, TypeDate, append([]colOpt{sortable, filterable}, opts...)...)
}

func ref(name, label string, opts ...colOpt) Column {
	return col(name, label, TypeUUID, append([]colOpt{filterable}, opts...)...)
}

func flag(name, label string, opts ...colOpt) Column {
	return col(name, label, TypeBoolean, append([]colOpt{filterable}, opts...)...)
}

// audit columns are maintained by the database and the update builder
func audit() []Column {
	return []Column{
		col("criado_em", "Criado em", TypeTimestamp, readOnly, sortable),
		col("atualizado_em", "Atualizado em", TypeTimestamp, readOnly, sortable),
	}
}

func table(module, name, label, description string, columns ...Column) Resource {
	return Resource{
		Module:      module,
		Name:        name,
		Label:       label,
		Schema:      module,
		Table:       name,
		Key:         "id",
		KeyType:     TypeUUID,
		Columns:     append(columns, audit()...),
		DefaultSort: "criado_em",
		UpdatedAt:   "atualizado_em",
		Description: description,
	}
}

func orderLines(module string) Resource {
	return table(module, "pedidos_itens", "Itens do pedido", "Itens de um pedido; criados junto com o pedido.",
		ref("pedido_id", "Pedido", fixed),
		ref("produto_id", "Produto"),
		text("descricao", "Descrição", required),
		numeric("quantidade", "Quantidade", required),
		numeric("preco_unitario", "Preço unitário", required, money),
		numeric("subtotal", "Subtotal", money),
	)
}

func orderLineSpec() *LineSpec {
	return &LineSpec{
		Resource:      "pedidos_itens",
		ForeignKey:    "pedido_id",
		Field:         "itens",
		AmountField:   "subtotal",
		QuantityField: "quantidade",
		PriceField:    "preco_unitario",
	}
}

// DefaultRegistry returns the catalog of the business modules
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// financeiro
	r.MustRegister(table("financeiro", "categorias", "Categorias", "Plano de categorias de receitas e despesas.",
		text("nome", "Nome", required, searchable, sortable),
		text("tipo", "Tipo", required, enum("receita", "despesa")),
		text("descricao", "Descrição"),
		flag("ativo", "Ativo", def(true)),
	))
	payable := table("financeiro", "contas_pagar", "Contas a pagar", "Títulos a pagar a fornecedores.",
		text("descricao", "Descrição", required, searchable, sortable),
		ref("fornecedor_id", "Fornecedor"),
		ref("categoria_id", "Categoria"),
		numeric("valor", "Valor", required, money),
		date("data_emissao", "Emissão"),
		date("data_vencimento", "Vencimento", required),
		date("data_pagamento", "Pagamento"),
		text("status", "Status", enum("pendente", "pago", "atrasado", "cancelado"), def("pendente"), sortable),
		text("forma_pagamento", "Forma de pagamento", filterable),
		text("observacao", "Observação"),
	)
	payable.DefaultSort = "data_vencimento"
	payable.DateField = "data_vencimento"
	r.MustRegister(payable)

	receivable := table("financeiro", "contas_receber", "Contas a receber", "Títulos a receber de clientes.",
		text("descricao", "Descrição", required, searchable, sortable),
		ref("cliente_id", "Cliente"),
		ref("categoria_id", "Categoria"),
		numeric("valor", "Valor", required, money),
		date("data_emissao", "Emissão"),
		date("data_vencimento", "Vencimento", required),
		date("data_recebimento", "Recebimento"),
		text("status", "Status", enum("pendente", "recebido", "atrasado", "cancelado"), def("pendente"), sortable),
		text("forma_recebimento", "Forma de recebimento", filterable),
		text("observacao", "Observação"),
	)
	receivable.DefaultSort = "data_vencimento"
	receivable.DateField = "data_vencimento"
	r.MustRegister(receivable)

	entries := table("financeiro", "lancamentos", "Lançamentos", "Movimentações do caixa e contas bancárias.",
		text("descricao", "Descrição", required, searchable),
		text("tipo", "Tipo", required, enum("entrada", "saida")),
		numeric("valor", "Valor", required, money),
		date("data_lancamento", "Data", required),
		ref("categoria_id", "Categoria"),
		text("conta", "Conta", filterable),
		flag("conciliado", "Conciliado", def(false)),
	)
	entries.DefaultSort = "data_lancamento"
	entries.DateField = "data_lancamento"
	r.MustRegister(entries)

	// vendas
	r.MustRegister(table("vendas", "clientes", "Clientes", "Cadastro de clientes.",
		text("nome", "Nome", required, searchable, sortable),
		text("documento", "CPF/CNPJ", searchable, filterable),
		text("email", "E-mail", searchable),
		text("telefone", "Telefone"),
		text("cidade", "Cidade", filterable, sortable),
		text("uf", "UF", filterable),
		text("segmento", "Segmento", filterable),
		flag("ativo", "Ativo", def(true)),
	))
	r.MustRegister(orderLines("vendas"))
	sales := table("vendas", "pedidos", "Pedidos de venda", "Pedidos de venda com itens.",
		ref("cliente_id", "Cliente", required),
		text("numero", "Número", searchable, sortable),
		date("data_pedido", "Data do pedido", required),
		text("status", "Status", enum("rascunho", "aprovado", "faturado", "cancelado"), def("rascunho"), sortable),
		numeric("valor_total", "Valor total", money),
		numeric("desconto", "Desconto", money),
		text("observacao", "Observação"),
	)
	sales.DefaultSort = "data_pedido"
	sales.DateField = "data_pedido"
	sales.TotalField = "valor_total"
	sales.Lines = orderLineSpec()
	r.MustRegister(sales)

	// compras
	r.MustRegister(table("compras", "fornecedores", "Fornecedores", "Cadastro de fornecedores.",
		text("nome", "Nome", required, searchable, sortable),
		text("documento", "CNPJ", searchable, filterable),
		text("email", "E-mail", searchable),
		text("telefone", "Telefone"),
		text("categoria", "Categoria", filterable),
		flag("ativo", "Ativo", def(true)),
	))
	r.MustRegister(orderLines("compras"))
	purchases := table("compras", "pedidos", "Pedidos de compra", "Pedidos de compra com itens.",
		ref("fornecedor_id", "Fornecedor", required),
		text("numero", "Número", searchable, sortable),
		date("data_pedido", "Data do pedido", required),
		date("data_entrega", "Entrega prevista"),
		text("status", "Status", enum("rascunho", "enviado", "recebido", "cancelado"), def("rascunho"), sortable),
		numeric("valor_total", "Valor total", money),
		text("observacao", "Observação"),
	)
	purchases.DefaultSort = "data_pedido"
	purchases.DateField = "data_pedido"
	purchases.TotalField = "valor_total"
	purchases.Lines = orderLineSpec()
	r.MustRegister(purchases)

	// crm
	r.MustRegister(table("crm", "leads", "Leads", "Contatos em prospecção.",
		text("nome", "Nome", required, searchable, sortable),
		text("empresa", "Empresa", searchable),
		text("email", "E-mail", searchable),
		text("telefone", "Telefone"),
		text("origem", "Origem", filterable),
		text("status", "Status", enum("novo", "contatado", "qualificado", "perdido"), def("novo"), sortable),
		text("responsavel", "Responsável", filterable),
		text("observacao", "Observação"),
	))
	deals := table("crm", "oportunidades", "Oportunidades", "Negócios em andamento no funil.",
		text("titulo", "Título", required, searchable, sortable),
		ref("lead_id", "Lead"),
		ref("cliente_id", "Cliente"),
		numeric("valor", "Valor", money),
		text("estagio", "Estágio", enum("prospeccao", "proposta", "negociacao", "ganho", "perdido"), def("prospeccao"), sortable),
		col("probabilidade", "Probabilidade (%)", TypeInteger, sortable),
		date("data_fechamento_prevista", "Fechamento previsto"),
	)
	deals.DateField = "data_fechamento_prevista"
	r.MustRegister(deals)
	activities := table("crm", "atividades", "Atividades", "Ligações, reuniões e tarefas do comercial.",
		text("tipo", "Tipo", required, enum("ligacao", "email", "reuniao", "tarefa")),
		text("assunto", "Assunto", required, searchable),
		col("data_atividade", "Data", TypeTimestamp, required, sortable),
		ref("lead_id", "Lead"),
		ref("oportunidade_id", "Oportunidade"),
		flag("concluida", "Concluída", def(false)),
		text("descricao", "Descrição"),
	)
	activities.DefaultSort = "data_atividade"
	activities.DateField = "data_atividade"
	r.MustRegister(activities)

	// servicos
	r.MustRegister(table("servicos", "catalogo", "Catálogo de serviços", "Serviços oferecidos e preços.",
		text("nome", "Nome", required, searchable, sortable),
		text("descricao", "Descrição", searchable),
		numeric("preco", "Preço", required, money),
		col("duracao_minutos", "Duração (min)", TypeInteger),
		flag("ativo", "Ativo", def(true)),
	))
	orders := table("servicos", "ordens_servico", "Ordens de serviço", "Ordens de serviço abertas para clientes.",
		text("numero", "Número", searchable, sortable),
		ref("cliente_id", "Cliente", required),
		ref("servico_id", "Serviço"),
		text("descricao", "Descrição", searchable),
		text("status", "Status", enum("aberta", "em_andamento", "concluida", "cancelada"), def("aberta"), sortable),
		date("data_abertura", "Abertura", required),
		date("data_conclusao", "Conclusão"),
		numeric("valor", "Valor", money),
		text("tecnico", "Técnico", filterable),
	)
	orders.DefaultSort = "data_abertura"
	orders.DateField = "data_abertura"
	r.MustRegister(orders)

	// recursoshumanos
	r.MustRegister(table("recursoshumanos", "departamentos", "Departamentos", "Estrutura organizacional.",
		text("nome", "Nome", required, searchable, sortable),
		text("centro_custo", "Centro de custo", filterable),
		text("gestor", "Gestor"),
	))
	staff := table("recursoshumanos", "funcionarios", "Funcionários", "Cadastro de colaboradores.",
		text("nome", "Nome", required, searchable, sortable),
		text("cpf", "CPF", fixed, searchable),
		text("email", "E-mail", searchable),
		text("cargo", "Cargo", filterable, sortable),
		ref("departamento_id", "Departamento"),
		date("data_admissao", "Admissão", required),
		numeric("salario", "Salário", money),
		text("status", "Status", enum("ativo", "afastado", "desligado"), def("ativo")),
	)
	staff.DateField = "data_admissao"
	r.MustRegister(staff)

	// estoque
	r.MustRegister(table("estoque", "produtos", "Produtos", "Itens controlados em estoque.",
		text("sku", "SKU", required, fixed, searchable, sortable, filterable),
		text("nome", "Nome", required, searchable, sortable),
		text("unidade", "Unidade", def("UN")),
		text("categoria", "Categoria", filterable),
		numeric("preco_custo", "Preço de custo", money),
		numeric("preco_venda", "Preço de venda", money),
		numeric("estoque_minimo", "Estoque mínimo"),
		flag("ativo", "Ativo", def(true)),
	))
	moves := table("estoque", "movimentacoes", "Movimentações", "Entradas e saídas de estoque; apenas a observação é editável.",
		ref("produto_id", "Produto", required, fixed),
		text("tipo", "Tipo", required, fixed, enum("entrada", "saida", "ajuste")),
		numeric("quantidade", "Quantidade", required, fixed),
		col("data_movimentacao", "Data", TypeTimestamp, required, fixed, sortable),
		text("documento", "Documento", fixed, searchable),
		text("observacao", "Observação"),
	)
	moves.DefaultSort = "data_movimentacao"
	moves.DateField = "data_movimentacao"
	r.MustRegister(moves)

	return r
}
